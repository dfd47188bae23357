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

// Package config loads the driver's session configuration the way the
// teacher's config/components packages decode a component config: a
// viper-backed key, mapstructure decoding into a typed struct, then
// validator tags checked by Validate().
package config

import "time"

// PoolConfig sizes a single host's connection pool (§4.8).
type PoolConfig struct {
	CoreConnections int `mapstructure:"core_connections" validate:"min=1"`
	MaxConnections  int `mapstructure:"max_connections" validate:"min=1,gtefield=CoreConnections"`
	MaxRequestsPerConnection int `mapstructure:"max_requests_per_connection" validate:"min=1,max=32768"`
}

// ReconnectionConfig configures the down-host reconnection backoff (§4.7).
type ReconnectionConfig struct {
	BaseDelay time.Duration `mapstructure:"base_delay" validate:"min=1000000"`
	MaxDelay  time.Duration `mapstructure:"max_delay" validate:"min=1000000,gtefield=BaseDelay"`
}

// SpeculativeConfig configures speculative execution pacing (§4.6).
type SpeculativeConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Delay   time.Duration `mapstructure:"delay" validate:"required_if=Enabled true"`
	MaxRuns int           `mapstructure:"max_runs" validate:"omitempty,min=1"`
}

// SessionConfig is the top-level configuration loaded to build a Session.
type SessionConfig struct {
	ContactPoints []string `mapstructure:"contact_points" validate:"required,min=1,dive,required"`
	Port          int      `mapstructure:"port" validate:"min=1,max=65535"`
	Keyspace      string   `mapstructure:"keyspace"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"min=1000000"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=1000000"`

	Pool          PoolConfig          `mapstructure:"pool" validate:"required"`
	Reconnection  ReconnectionConfig  `mapstructure:"reconnection" validate:"required"`
	Speculative   SpeculativeConfig   `mapstructure:"speculative"`

	SchemaAgreementTimeout  time.Duration `mapstructure:"schema_agreement_timeout" validate:"min=1000000"`
	SchemaDebounceInterval  time.Duration `mapstructure:"schema_debounce_interval" validate:"min=1000000"`
}

// Validate checks every constraint tagged on SessionConfig and its nested
// structs, returning the first aggregate validation failure.
func (c *SessionConfig) Validate() error {
	return validate.Struct(c)
}

// Default returns a SessionConfig with the driver's baseline values,
// mirroring the defaults a deployed cluster is expected to run with.
func Default() *SessionConfig {
	return &SessionConfig{
		Port:           9042,
		ConnectTimeout: 5 * time.Second,
		RequestTimeout: 10 * time.Second,
		Pool: PoolConfig{
			CoreConnections:          1,
			MaxConnections:           2,
			MaxRequestsPerConnection: 1024,
		},
		Reconnection: ReconnectionConfig{
			BaseDelay: time.Second,
			MaxDelay:  10 * time.Minute,
		},
		Speculative: SpeculativeConfig{
			Enabled: false,
		},
		SchemaAgreementTimeout: 10 * time.Second,
		SchemaDebounceInterval: time.Second,
	}
}
