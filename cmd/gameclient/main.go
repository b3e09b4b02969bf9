// Command gameclient is a minimal compliant client for the control plane:
// it authenticates, lists published games, downloads a package, and
// launches its local client process, exercising the clientshim contract.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/forgegames/platform/internal/clientshim"
	"github.com/forgegames/platform/internal/protocol"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: gameclient <login|list|download|start> [flags]")
	}

	switch args[0] {
	case "login":
		return runLogin(args[1:])
	case "list":
		return runList(args[1:])
	case "download":
		return runDownload(args[1:])
	case "start":
		return runStart(args[1:])
	default:
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

func dialAndLogin(addr, username, password *string) (*clientshim.Client, error) {
	ctx := context.Background()
	c, err := clientshim.Dial(ctx, *addr)
	if err != nil {
		return nil, err
	}

	var resp struct {
		SessionToken string `json:"session_token"`
	}
	err = c.Call(ctx, protocol.TypeLoginPlayer, struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{Username: *username, Password: *password}, &resp)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("login: %w", err)
	}
	c.SetToken(resp.SessionToken)
	return c, nil
}

func runLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	addr := fs.String("addr", "127.0.0.1:9000", "control plane address")
	username := fs.String("username", "", "account username")
	password := fs.String("password", "", "account password")
	fs.Parse(args)

	c, err := dialAndLogin(addr, username, password)
	if err != nil {
		return err
	}
	defer c.Close()
	fmt.Println("logged in as", *username)
	return nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	addr := fs.String("addr", "127.0.0.1:9000", "control plane address")
	fs.Parse(args)

	ctx := context.Background()
	c, err := clientshim.Dial(ctx, *addr)
	if err != nil {
		return err
	}
	defer c.Close()

	var resp struct {
		Games []struct {
			GameName string `json:"game_name"`
			Version  int    `json:"version"`
			Type     string `json:"type"`
		} `json:"games"`
	}
	if err := c.Call(ctx, protocol.TypeListGame, struct{}{}, &resp); err != nil {
		return err
	}
	for _, g := range resp.Games {
		fmt.Printf("%s v%d (%s)\n", g.GameName, g.Version, g.Type)
	}
	return nil
}

func runDownload(args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	addr := fs.String("addr", "127.0.0.1:9000", "control plane address")
	username := fs.String("username", "", "account username")
	password := fs.String("password", "", "account password")
	gameName := fs.String("game", "", "game name")
	version := fs.Int("version", 0, "game version")
	libraryDir := fs.String("library", defaultLibraryDir(), "local package library directory")
	fs.Parse(args)

	c, err := dialAndLogin(addr, username, password)
	if err != nil {
		return err
	}
	defer c.Close()

	lib, err := clientshim.NewLibrary(*libraryDir)
	if err != nil {
		return err
	}

	installed, err := lib.Download(context.Background(), c, *gameName, *version)
	if err != nil {
		return err
	}
	fmt.Println("downloaded to", installed.Path)
	return nil
}

func runStart(args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	username := fs.String("username", "", "account username")
	gameName := fs.String("game", "", "game name")
	version := fs.Int("version", 0, "game version")
	host := fs.String("host", "", "game server host, as returned by GAME.START")
	port := fs.Int("port", 0, "game server port, as returned by GAME.START")
	clientToken := fs.String("client-token", "", "client token, as returned by GAME.START")
	roomID := fs.Int("room", 0, "room id")
	libraryDir := fs.String("library", defaultLibraryDir(), "local package library directory")
	fs.Parse(args)

	lib, err := clientshim.NewLibrary(*libraryDir)
	if err != nil {
		return err
	}
	installed, err := lib.Load(*gameName, *version)
	if err != nil {
		return fmt.Errorf("game must be downloaded locally before it can be started: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	proc, err := clientshim.Launch(installed, clientshim.LaunchContext{
		Host:        *host,
		Port:        *port,
		ClientToken: *clientToken,
		PlayerName:  *username,
		RoomID:      *roomID,
	})
	if err != nil {
		return err
	}
	logger.Info("launched local game client", "pid", proc.Pid, "game", *gameName, "version", *version)
	return nil
}

func defaultLibraryDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".forgegames/library"
	}
	return filepath.Join(home, ".forgegames", "library")
}
