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

// Package handlers is the application layer SPEC_FULL.md §12 builds on top
// of the core protocol: login/signup/logout against the auth.Store,
// heartbeat, and a chat echo that answers a logged-in connection's
// ChatText with a ChatAck carrying the same body back to the sender (no
// fan-out to other clients), grounded on original_source's networkManager
// message handling (login/signup/logout/chat) but expressed as
// dispatch.Handler closures instead of a switch over an enum in one
// big onMessage method.
package handlers

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sabouaram/securetalk/auth"
	"github.com/sabouaram/securetalk/clientid"
	"github.com/sabouaram/securetalk/dispatch"
	"github.com/sabouaram/securetalk/msgtype"
)

// Sessions maps each logged-in ClientID to an opaque login token (minted
// with google/uuid, the corpus's standard for this, see SPEC_FULL.md §11)
// and each token to its username. Call Register to wire every handler
// in this package onto a dispatch.Registry.
type Sessions struct {
	mu     sync.Mutex
	byConn map[clientid.ID]string
	byTok  map[string]string // token -> username
}

// NewSessions returns an empty session table.
func NewSessions() *Sessions {
	return &Sessions{
		byConn: make(map[clientid.ID]string),
		byTok:  make(map[string]string),
	}
}

func (s *Sessions) login(id clientid.ID, username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := uuid.NewString()
	s.byTok[tok] = username
	s.byConn[id] = tok
	return tok
}

func (s *Sessions) logout(id clientid.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok, ok := s.byConn[id]; ok {
		delete(s.byTok, tok)
		delete(s.byConn, id)
	}
}

func (s *Sessions) usernameFor(id clientid.ID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.byConn[id]
	if !ok {
		return "", false
	}
	name, ok := s.byTok[tok]
	return name, ok
}

// Register wires every handler in this package onto reg, backed by store
// for credentials and sess for the connection<->session mapping.
func Register(reg *dispatch.Registry, store *auth.Store, sess *Sessions) {
	reg.Register(msgtype.Heartbeat, func(from clientid.ID, body []byte) (clientid.ID, msgtype.MsgType, []byte) {
		return from, msgtype.Heartbeat, []byte("pong")
	})

	reg.Register(msgtype.SignupRequest, func(from clientid.ID, body []byte) (clientid.ID, msgtype.MsgType, []byte) {
		username, password, ok := splitCredentials(body)
		if !ok {
			return from, msgtype.SignupResponse, []byte("malformed-request")
		}
		res, err := store.CreateUser(username, password)
		if err != nil {
			return from, msgtype.SignupResponse, []byte("error")
		}
		switch res {
		case auth.OK:
			return from, msgtype.SignupResponse, []byte("ok")
		case auth.AlreadyExists:
			return from, msgtype.SignupResponse, []byte("exists")
		default:
			return from, msgtype.SignupResponse, []byte("error")
		}
	})

	reg.Register(msgtype.LoginRequest, func(from clientid.ID, body []byte) (clientid.ID, msgtype.MsgType, []byte) {
		username, password, ok := splitCredentials(body)
		if !ok {
			return from, msgtype.LoginResponse, []byte("malformed-request")
		}
		res, err := store.Authenticate(username, password)
		if err != nil {
			return from, msgtype.LoginResponse, []byte("error")
		}
		switch res {
		case auth.OK:
			tok := sess.login(from, username)
			return from, msgtype.LoginResponse, []byte("ok:" + tok)
		case auth.NotFound:
			return from, msgtype.LoginResponse, []byte("not-found")
		case auth.BadPassword:
			return from, msgtype.LoginResponse, []byte("bad-password")
		default:
			return from, msgtype.LoginResponse, []byte("error")
		}
	})

	reg.Register(msgtype.LogoutRequest, func(from clientid.ID, body []byte) (clientid.ID, msgtype.MsgType, []byte) {
		sess.logout(from)
		return from, msgtype.LogoutResponse, []byte("ok")
	})

	reg.Register(msgtype.ChatText, func(from clientid.ID, body []byte) (clientid.ID, msgtype.MsgType, []byte) {
		if _, ok := sess.usernameFor(from); !ok {
			return from, msgtype.ChatAck, []byte("not-authenticated")
		}
		return from, msgtype.ChatAck, body
	})
}

// splitCredentials parses a "username\x00password" body, the wire shape
// of the login/signup request bodies.
func splitCredentials(body []byte) (username, password string, ok bool) {
	parts := strings.SplitN(string(body), "\x00", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
