package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func adminFlags(name string) (*flag.FlagSet, *string, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	player := fs.String("player", "", "player id")
	return fs, baseURL, player
}

func playerURL(baseURL, player, suffix string) string {
	if strings.TrimSpace(player) == "" {
		fmt.Fprintln(os.Stderr, "missing -player")
		os.Exit(2)
	}
	return strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/admin/v1/players/" + url.PathEscape(player) + "/livemap" + suffix
}

func playersCmd(args []string) {
	fs, baseURL, _ := adminFlags("players")
	_ = fs.Parse(args)
	do(http.MethodGet, strings.TrimRight(strings.TrimSpace(*baseURL), "/")+"/admin/v1/players", nil)
}

func stateCmd(args []string) {
	fs, baseURL, player := adminFlags("state")
	_ = fs.Parse(args)
	do(http.MethodGet, playerURL(*baseURL, *player, ""), nil)
}

func fovCmd(args []string) {
	fs, baseURL, player := adminFlags("fov")
	minX := fs.Int("min_x", -2, "window min x (blocks)")
	maxX := fs.Int("max_x", 2, "window max x (blocks)")
	minY := fs.Int("min_y", -2, "window min y (blocks)")
	maxY := fs.Int("max_y", 2, "window max y (blocks)")
	_ = fs.Parse(args)
	do(http.MethodPut, playerURL(*baseURL, *player, "/fov"), map[string]int{
		"min_x": *minX, "max_x": *maxX, "min_y": *minY, "max_y": *maxY,
	})
}

func versionCmd(args []string) {
	fs, baseURL, player := adminFlags("version")
	major := fs.Int("major", 1, "live map major version")
	minor := fs.Int("minor", 0, "live map minor version")
	_ = fs.Parse(args)
	do(http.MethodPut, playerURL(*baseURL, *player, "/version"), map[string]int{"major": *major, "minor": *minor})
}

func resetCmd(args []string) {
	fs, baseURL, player := adminFlags("reset")
	_ = fs.Parse(args)
	do(http.MethodPost, playerURL(*baseURL, *player, "/reset"), nil)
}

func landCmd(args []string)    { blockCmd("land", args) }
func staticsCmd(args []string) { blockCmd("statics", args) }

// blockCmd uploads one block's raw land or statics bytes. An empty statics
// file clears the block.
func blockCmd(kind string, args []string) {
	fs := flag.NewFlagSet(kind, flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	mapNum := fs.Int("map", -1, "map number (required)")
	block := fs.Int("block", -1, "block id (required)")
	file := fs.String("file", "", "raw "+kind+" bytes for the block (required)")
	_ = fs.Parse(args)

	if *mapNum < 0 || *mapNum > 255 || *block < 0 {
		fmt.Fprintln(os.Stderr, "missing or bad -map/-block")
		os.Exit(2)
	}
	if strings.TrimSpace(*file) == "" {
		fmt.Fprintln(os.Stderr, "missing -file")
		os.Exit(2)
	}
	data, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	u := fmt.Sprintf("%s/admin/v1/maps/%d/blocks/%d/%s", strings.TrimRight(strings.TrimSpace(*baseURL), "/"), *mapNum, *block, kind)
	do(http.MethodPut, u, map[string][]byte{"data": data})
}

func do(method, u string, body any) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fmt.Fprintln(os.Stderr, "encode:", err)
			os.Exit(1)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, u, rd)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(2)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
