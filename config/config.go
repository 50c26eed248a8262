// Copyright 2017 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package config holds the recognized configuration options (§6) and loads
// them from TOML, following abey/config.go's DefaultConfig + tag convention
// and cmd/gabey/config.go's loadConfig helper.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"
	"unicode"

	"github.com/naoina/toml"

	"github.com/abeychain/go-tezsync/chain/types"
)

// PipelineLimits caps in-flight requests per pipeline per peer (§3, §6).
type PipelineLimits struct {
	BlockHeaders      int
	BlockOperations   int
	MempoolOperations int
	CurrentHead       int
}

// Config is the full set of options recognized by the chain-sync core.
type Config struct {
	ChainID types.Hash `toml:"-"`

	BootstrapThresholdPeers int
	BootstrapLevelThreshold types.Level

	AskCurrentHeadInitialDelay time.Duration
	AskCurrentHeadInterval     time.Duration

	SilentPeerTimeout              time.Duration
	CurrentHeadLevelUpdateTimeout  time.Duration
	DisciplinarianScanInterval     time.Duration
	UnsolicitedStrikeLimit         int
	UnsolicitedStrikeWindow        time.Duration
	PerRequestTimeout              time.Duration
	MaxRetriesPerRequest           int

	PerPeerPipelineLimits PipelineLimits

	IsSandbox           bool
	P2PDisableMempool   bool

	CurrentHeadLevelOverride *types.Level `toml:",omitempty"`

	DataDir string `toml:",omitempty"`
}

// Default mirrors the constants chain_manager.rs uses literally
// (ASK_CURRENT_HEAD_INTERVAL=90s, ASK_CURRENT_HEAD_INITIAL_DELAY=15s,
// SILENT_PEER_TIMEOUT=60s, CURRENT_HEAD_LEVEL_UPDATE_TIMEOUT=120s), plus
// the conservative strike default spec.md §9 proposes (3 within 60s).
var Default = Config{
	BootstrapThresholdPeers: 2,
	BootstrapLevelThreshold: 0,

	AskCurrentHeadInitialDelay: 15 * time.Second,
	AskCurrentHeadInterval:     90 * time.Second,

	SilentPeerTimeout:             60 * time.Second,
	CurrentHeadLevelUpdateTimeout: 120 * time.Second,
	DisciplinarianScanInterval:    30 * time.Second,
	UnsolicitedStrikeLimit:        3,
	UnsolicitedStrikeWindow:       60 * time.Second,
	PerRequestTimeout:             30 * time.Second,
	MaxRetriesPerRequest:          5,

	PerPeerPipelineLimits: PipelineLimits{
		BlockHeaders:      64,
		BlockOperations:   64,
		MempoolOperations: 256,
		CurrentHead:       4,
	},
}

// sandboxSilentPeerTimeout mirrors SILENT_PEER_TIMEOUT_SANDBOX from the
// source (an effectively infinite duration, disabling disciplinary
// disconnects).
const sandboxSilentPeerTimeout = 365 * 24 * time.Hour

// ApplySandbox disables disciplinary timeouts when IsSandbox is set.
func (c *Config) ApplySandbox() {
	if c.IsSandbox {
		c.SilentPeerTimeout = sandboxSilentPeerTimeout
	}
}

var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) {
			link = fmt.Sprintf(", see %s for available fields", rt.String())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// Load reads and decodes a TOML configuration file into cfg, following
// cmd/gabey/config.go's loadConfig.
func Load(file string, cfg *Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// Dump marshals cfg back to TOML, following cmd/gabey/config.go's
// dumpConfig command.
func Dump(cfg *Config) ([]byte, error) {
	return tomlSettings.Marshal(cfg)
}
