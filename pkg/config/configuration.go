// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/matrixorigin/moblock/pkg/common/moerr"
	"github.com/matrixorigin/moblock/pkg/logutil"
)

const (
	defaultInitialEntries        = 8
	defaultExpectedBytesPerEntry = 32
	// 1MB, the same as the default page size limit of the page builder.
	defaultMaxPageSizeInBytes = 1 << 20
	defaultCompression        = CompressionLZ4
	defaultMinCompressSize    = 256
	defaultLoaderWorkers      = 4
)

const (
	CompressionNone = "none"
	CompressionLZ4  = "lz4"
	CompressionZstd = "zstd"
)

// BlockConfig controls builder sizing.
type BlockConfig struct {
	// InitialEntries is the capacity a builder allocates on its first write
	// when the caller gives no expected entry count.
	InitialEntries int `toml:"initial-entries"`

	// ExpectedBytesPerEntry sizes the byte buffer of variable width builders.
	ExpectedBytesPerEntry int `toml:"expected-bytes-per-entry"`

	// MaxPageSizeInBytes is the threshold at which a page builder reports full.
	MaxPageSizeInBytes int64 `toml:"max-page-size"`
}

// SerdeConfig controls page serialization.
type SerdeConfig struct {
	// Compression is one of none, lz4, zstd.
	Compression string `toml:"compression"`

	// MinCompressSize is the smallest serialized page that is worth compressing.
	MinCompressSize int `toml:"min-compress-size"`
}

// LoaderConfig controls the lazy column loader pool.
type LoaderConfig struct {
	Workers int `toml:"workers"`
}

type Config struct {
	Log    logutil.LogConfig `toml:"log"`
	Block  BlockConfig       `toml:"block"`
	Serde  SerdeConfig       `toml:"serde"`
	Loader LoaderConfig      `toml:"loader"`
}

// NewConfig returns a config with every default filled.
func NewConfig() *Config {
	cfg := &Config{}
	cfg.FillDefault()
	return cfg
}

// Parse decodes a toml document and fills the defaults of missing keys.
func Parse(data string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.Decode(data, cfg); err != nil {
		return nil, moerr.NewBadConfig(context.Background(), "%v", err)
	}
	cfg.FillDefault()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads the toml file at path.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, moerr.NewBadConfig(context.Background(), "load %s: %v", path, err)
	}
	cfg.FillDefault()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logutil.Info(context.Background(), "block config loaded",
		zap.String("path", path),
		zap.Int("initial-entries", cfg.Block.InitialEntries),
		zap.Int64("max-page-size", cfg.Block.MaxPageSizeInBytes),
		zap.String("compression", cfg.Serde.Compression))
	return cfg, nil
}

func (c *Config) FillDefault() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Block.InitialEntries == 0 {
		c.Block.InitialEntries = defaultInitialEntries
	}
	if c.Block.ExpectedBytesPerEntry == 0 {
		c.Block.ExpectedBytesPerEntry = defaultExpectedBytesPerEntry
	}
	if c.Block.MaxPageSizeInBytes == 0 {
		c.Block.MaxPageSizeInBytes = defaultMaxPageSizeInBytes
	}
	if c.Serde.Compression == "" {
		c.Serde.Compression = defaultCompression
	}
	if c.Serde.MinCompressSize == 0 {
		c.Serde.MinCompressSize = defaultMinCompressSize
	}
	if c.Loader.Workers == 0 {
		c.Loader.Workers = defaultLoaderWorkers
	}
}

func (c *Config) Validate() error {
	ctx := context.Background()
	if c.Block.InitialEntries < 0 {
		return moerr.NewBadConfig(ctx, "block.initial-entries must not be negative: %d", c.Block.InitialEntries)
	}
	if c.Block.ExpectedBytesPerEntry < 0 {
		return moerr.NewBadConfig(ctx, "block.expected-bytes-per-entry must not be negative: %d", c.Block.ExpectedBytesPerEntry)
	}
	if c.Block.MaxPageSizeInBytes < 0 {
		return moerr.NewBadConfig(ctx, "block.max-page-size must not be negative: %d", c.Block.MaxPageSizeInBytes)
	}
	switch c.Serde.Compression {
	case CompressionNone, CompressionLZ4, CompressionZstd:
	default:
		return moerr.NewBadConfig(ctx, "unsupported serde.compression %q", c.Serde.Compression)
	}
	if c.Serde.MinCompressSize < 0 {
		return moerr.NewBadConfig(ctx, "serde.min-compress-size must not be negative: %d", c.Serde.MinCompressSize)
	}
	if c.Loader.Workers < 0 {
		return moerr.NewBadConfig(ctx, "loader.workers must not be negative: %d", c.Loader.Workers)
	}
	return nil
}
