/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
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

// Package auth is the credential store SPEC_FULL.md §12 adds on top of the
// core protocol: a gorm-backed users table, salted SHA-256 password
// hashing, grounded on original_source/src/databaseManager.cpp's
// createUser/authenticateUser/deleteUser trio but expressed as a gorm
// model instead of hand-rolled sqlite3_prepare_v2 statements.
package auth

import (
	"crypto/rand"
	"errors"
	"math/big"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sabouaram/securetalk/apperr"
	libenc "github.com/sabouaram/securetalk/encoding"
	"github.com/sabouaram/securetalk/encoding/hexa"
	encsha "github.com/sabouaram/securetalk/encoding/sha256"
	liberr "github.com/sabouaram/securetalk/errors"
)

// Result is the outcome of a Store operation, mirroring the original
// source's DatabaseManager::ResultCode enum.
type Result int

const (
	OK Result = iota
	AlreadyExists
	NotFound
	BadPassword
	StoreError
)

const saltLen = 16

const saltCharset = "0123456789" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"abcdefghijklmnopqrstuvwxyz" +
	"!@#$%^&*()_+"

// user is the gorm model backing the users table, matching the original
// source's "id, username, password_hash, salt" schema.
type user struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Salt         string `gorm:"not null"`
}

// Store is the sqlite-backed credential store. One Store is safe for
// concurrent use by every dispatch worker: gorm.DB pools its own
// connections, so unlike the original source's single m_user_databaseMutex
// there is no store-wide lock here.
type Store struct {
	db *gorm.DB
}

// Open creates or attaches to the sqlite database at path and migrates
// the users table, the Go equivalent of the original source's
// constructor-time "CREATE TABLE IF NOT EXISTS users".
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, apperr.New(apperr.CodeAuthStore, "open credential store", err)
	}
	if err := db.AutoMigrate(&user{}); err != nil {
		return nil, apperr.New(apperr.CodeAuthStore, "migrate users table", err)
	}
	return &Store{db: db}, nil
}

// CreateUser inserts a new user with a freshly generated salt, returning
// AlreadyExists if the username is taken (original source: USER_ALREADY_EXISTS).
func (s *Store) CreateUser(username, password string) (Result, liberr.Error) {
	salt, err := generateSalt(saltLen)
	if err != nil {
		return StoreError, apperr.New(apperr.CodeAuthStore, "generate salt", err)
	}

	u := user{
		Username:     username,
		PasswordHash: hashPassword(password, salt),
		Salt:         salt,
	}

	res := s.db.Create(&u)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return AlreadyExists, nil
		}
		var existing user
		if s.db.Where("username = ?", username).First(&existing).Error == nil {
			return AlreadyExists, nil
		}
		return StoreError, apperr.New(apperr.CodeAuthStore, "insert user", res.Error)
	}
	return OK, nil
}

// Authenticate verifies a password against the stored salted hash
// (original source: authenticateUser).
func (s *Store) Authenticate(username, password string) (Result, liberr.Error) {
	var u user
	if err := s.db.Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NotFound, nil
		}
		return StoreError, apperr.New(apperr.CodeAuthStore, "lookup user", err)
	}

	if hashPassword(password, u.Salt) != u.PasswordHash {
		return BadPassword, nil
	}
	return OK, nil
}

// DeleteUser removes a user by name (original source: deleteUser).
func (s *Store) DeleteUser(username string) (Result, liberr.Error) {
	res := s.db.Where("username = ?", username).Delete(&user{})
	if res.Error != nil {
		return StoreError, apperr.New(apperr.CodeAuthStore, "delete user", res.Error)
	}
	if res.RowsAffected == 0 {
		return NotFound, nil
	}
	return OK, nil
}

// Close releases the underlying sqlite connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// hashPassword digests password+salt with a sha256.Coder, then hex-encodes
// the raw digest with a hexa.Coder, matching original_source's
// salted-SHA-256 scheme.
func hashPassword(password, salt string) string {
	var digest libenc.Coder = encsha.New()
	sum := digest.Encode([]byte(password + salt))
	return string(hexa.New().Encode(sum))
}

// generateSalt mirrors the original source's generateSalt: length random
// characters drawn from an alphanumeric-plus-symbol charset, but sourced
// from crypto/rand instead of std::mt19937 seeded off std::random_device.
func generateSalt(length int) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(saltCharset)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = saltCharset[n.Int64()]
	}
	return string(out), nil
}
