/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package config loads and validates the server's KEY=VALUE configuration
// file: a flat, viper "env"-typed document decoded into a typed Config and
// checked against validator/v10 struct tags.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	liberr "github.com/sabouaram/staticd/internal/errors"
)

// Config is the decoded, validated contents of the configuration file.
type Config struct {
	Port             int    `mapstructure:"port" validate:"min=1,max=65535"`
	DocumentRoot     string `mapstructure:"document_root" validate:"required"`
	NumWorkers       int    `mapstructure:"num_workers" validate:"min=1"`
	ThreadsPerWorker int    `mapstructure:"threads_per_worker" validate:"min=1"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds" validate:"min=1"`
	CacheSizeMB      int    `mapstructure:"cache_size_mb" validate:"min=0"`
}

// Default returns the configuration defaults, used when a key is absent
// from the file.
func Default() Config {
	return Config{
		Port:             8080,
		DocumentRoot:     "/var/www/html",
		NumWorkers:       4,
		ThreadsPerWorker: 10,
		TimeoutSeconds:   30,
		CacheSizeMB:      10,
	}
}

// Load reads the KEY=VALUE file at path, falling back to Default() for any
// key it does not set, and returns the decoded, unvalidated Config.
func Load(path string) (Config, liberr.Error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, ErrorFileOpen.Error(err)
	}

	v := viper.New()
	v.SetConfigType("env")

	if err = v.ReadConfig(bytes.NewReader(data)); err != nil {
		return cfg, ErrorFileDecode.Error(err)
	}

	if err = v.Unmarshal(&cfg); err != nil {
		return cfg, ErrorFileDecode.Error(err)
	}

	return cfg, nil
}

// Validate checks cfg against its struct tags, returning an Error
// enumerating every offending field rather than only the first.
func (c Config) Validate() liberr.Error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	out := ErrorValidation.Error(nil)

	if ve, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range ve {
			//nolint goerr113
			out.Add(fmt.Errorf("field %q failed constraint %q (value %v)", fe.Field(), fe.ActualTag(), fe.Value()))
		}
	} else {
		out.Add(err)
	}

	if out.HasParent() {
		return out
	}
	return nil
}

// Clone returns a value copy of c; Config holds no pointers so this is a
// plain struct copy, kept as a named method to mirror the teacher's
// ServerConfig.Clone convention.
func (c Config) Clone() Config {
	return c
}
