/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
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

package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

var validate = validator.New()

// Load reads the given key out of a viper instance (already fed a config
// file, env, or flags by the embedding application) into a SessionConfig
// seeded with Default(), then validates the result.
//
// key may be empty to unmarshal the whole viper root.
func Load(v *viper.Viper, key string) (*SessionConfig, error) {
	cfg := Default()

	opt := viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc())

	var err error
	if key == "" {
		err = v.Unmarshal(cfg, opt)
	} else {
		if !v.IsSet(key) {
			return nil, fmt.Errorf("config: missing key %q", key)
		}
		err = v.UnmarshalKey(key, cfg, opt)
	}
	if err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return cfg, nil
}
