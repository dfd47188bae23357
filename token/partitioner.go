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

// Package token implements the Token Map (spec.md §4.4): an immutable
// snapshot mapping partition tokens to replica sets per keyspace.
package token

import (
	"bytes"
	"crypto/md5"
	"errors"
	"math/big"
	"strconv"
	"strings"
)

// Token orders partition-key hashes on the ring. Its concrete type
// depends on the Partitioner that produced it; all three are only ever
// compared to tokens from the same partitioner.
type Token interface {
	Compare(other Token) int
	String() string
}

// Partitioner hashes a partition key into a Token (spec.md §4.4,
// "hash(partition_key)").
type Partitioner interface {
	Name() string
	Hash(key []byte) Token
	// ParseToken parses a token's decimal/text system-table
	// representation (e.g. system.local.tokens, system.peers.tokens)
	// back into this partitioner's Token type, for ring construction
	// during Control Connection bootstrap.
	ParseToken(s string) (Token, error)
}

// Murmur3Token is a signed 64-bit token, as produced by Cassandra's
// default partitioner.
type Murmur3Token int64

func (t Murmur3Token) Compare(other Token) int {
	o := other.(Murmur3Token)
	switch {
	case t < o:
		return -1
	case t > o:
		return 1
	default:
		return 0
	}
}

func (t Murmur3Token) String() string { return bigFromInt64(int64(t)).String() }

func bigFromInt64(v int64) *big.Int { return big.NewInt(v) }

// Murmur3Partitioner hashes keys with the 128-bit x64 MurmurHash3,
// taking the low 64 bits (h1) as the token (spec.md §4.4).
type Murmur3Partitioner struct{}

func (Murmur3Partitioner) Name() string { return "Murmur3Partitioner" }

func (Murmur3Partitioner) Hash(key []byte) Token {
	h1, _ := murmur3Sum128(key)
	return Murmur3Token(int64(h1))
}

func (Murmur3Partitioner) ParseToken(s string) (Token, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return Murmur3Token(v), nil
}

// RandomToken is an unsigned 128-bit token derived from MD5.
type RandomToken struct{ v *big.Int }

func (t RandomToken) Compare(other Token) int {
	o := other.(RandomToken)
	return t.v.Cmp(o.v)
}

func (t RandomToken) String() string { return t.v.String() }

// RandomPartitioner hashes keys with MD5, treated as a 128-bit unsigned
// integer (spec.md §4.4).
type RandomPartitioner struct{}

func (RandomPartitioner) Name() string { return "RandomPartitioner" }

func (RandomPartitioner) Hash(key []byte) Token {
	sum := md5.Sum(key)
	return RandomToken{v: new(big.Int).SetBytes(sum[:])}
}

func (RandomPartitioner) ParseToken(s string) (Token, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.New("token: invalid RandomPartitioner token " + s)
	}
	return RandomToken{v: v}, nil
}

// OrderedToken is the raw partition key, compared lexicographically.
type OrderedToken struct{ v []byte }

func (t OrderedToken) Compare(other Token) int {
	o := other.(OrderedToken)
	return bytes.Compare(t.v, o.v)
}

func (t OrderedToken) String() string { return string(t.v) }

// OrderedPartitioner is the identity partitioner: the key itself is the
// token (spec.md §4.4).
type OrderedPartitioner struct{}

func (OrderedPartitioner) Name() string { return "ByteOrderedPartitioner" }

func (OrderedPartitioner) Hash(key []byte) Token {
	cp := make([]byte, len(key))
	copy(cp, key)
	return OrderedToken{v: cp}
}

func (OrderedPartitioner) ParseToken(s string) (Token, error) {
	return OrderedToken{v: []byte(s)}, nil
}

// ByName resolves the fully-qualified partitioner class name reported
// by system.local.partitioner to the matching Partitioner.
func ByName(class string) Partitioner {
	switch {
	case strings.HasSuffix(class, "RandomPartitioner"):
		return RandomPartitioner{}
	case strings.HasSuffix(class, "ByteOrderedPartitioner"):
		return OrderedPartitioner{}
	default:
		return Murmur3Partitioner{}
	}
}

