// Package config loads the settings that parameterize an index: where its
// files live on disk, how big the buffer pool is, and the creation
// parameters (key type, max key size, delete policy) used the first time a
// named index is opened.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/mooncake-db/bptreeidx/internal/bptree"
	"github.com/mooncake-db/bptreeidx/internal/keycodec"
)

// BPTreeConfig is the top-level shape of a YAML config file.
type BPTreeConfig struct {
	Storage struct {
		Dir              string `mapstructure:"dir"`
		BufferPoolFrames int    `mapstructure:"buffer_pool_frames"`
	} `mapstructure:"storage"`
	Index struct {
		KeyType      string `mapstructure:"key_type"`
		MaxKeySize   int    `mapstructure:"max_key_size"`
		DeletePolicy string `mapstructure:"delete_policy"`
	} `mapstructure:"index"`
	Server struct {
		Debug bool `mapstructure:"debug"`
	} `mapstructure:"server"`
}

// LoadConfig reads and unmarshals a YAML config file at path.
func LoadConfig(path string) (*BPTreeConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("storage.buffer_pool_frames", 128)
	v.SetDefault("index.key_type", "int")
	v.SetDefault("index.max_key_size", keycodec.MaxStrKeyLen)
	v.SetDefault("index.delete_policy", "full")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg BPTreeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// KeyType resolves the configured key type name to a keycodec.KeyType.
func (c *BPTreeConfig) KeyType() (keycodec.KeyType, error) {
	switch c.Index.KeyType {
	case "", "int":
		return keycodec.KeyTypeInt, nil
	case "str":
		return keycodec.KeyTypeStr, nil
	default:
		return 0, fmt.Errorf("config: unknown index.key_type %q", c.Index.KeyType)
	}
}

// DeletePolicy resolves the configured policy name to a bptree.DeletePolicy.
func (c *BPTreeConfig) DeletePolicy() (bptree.DeletePolicy, error) {
	switch c.Index.DeletePolicy {
	case "", "full":
		return bptree.DeletePolicyFull, nil
	case "naive":
		return bptree.DeletePolicyNaive, nil
	default:
		return 0, fmt.Errorf("config: unknown index.delete_policy %q", c.Index.DeletePolicy)
	}
}
