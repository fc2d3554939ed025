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

// Package msgtype defines the wire-level message type tags the core treats
// as opaque 16-bit lookup keys (spec.md §6). The constants below are the
// application-layer enum observed in original_source/include/networkMsg.h;
// the core itself never branches on any of them.
package msgtype

// MsgType is the 16-bit tag carried in every frame header.
type MsgType uint16

const (
	System MsgType = iota
	Heartbeat

	LoginRequest
	LoginResponse
	LogoutRequest
	LogoutResponse

	SignupRequest
	SignupResponse

	ChatText
	ChatAck

	UserOnline
	UserOffline
	UserTyping
)

// InvalidMessage is the application-layer tag for rejecting a malformed
// payload. The handlers package does not send it (its handlers answer a
// malformed request with their own response type), and the core decoder
// does not produce it either: it closes the connection on a malformed
// frame (spec.md §4.1).
const InvalidMessage MsgType = 0xFFFE

func (t MsgType) String() string {
	switch t {
	case System:
		return "system"
	case Heartbeat:
		return "heartbeat"
	case LoginRequest:
		return "login-request"
	case LoginResponse:
		return "login-response"
	case LogoutRequest:
		return "logout-request"
	case LogoutResponse:
		return "logout-response"
	case SignupRequest:
		return "signup-request"
	case SignupResponse:
		return "signup-response"
	case ChatText:
		return "chat-text"
	case ChatAck:
		return "chat-ack"
	case UserOnline:
		return "user-online"
	case UserOffline:
		return "user-offline"
	case UserTyping:
		return "user-typing"
	case InvalidMessage:
		return "invalid-message-error"
	default:
		return "unknown"
	}
}
