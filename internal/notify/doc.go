// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package notify delivers account mail on behalf of the auth services.
//
// A Dispatcher sits in front of a concrete Notifier (AMQP or log) so that
// callers never block on delivery: messages are queued, sent by a worker
// with exponential backoff, and dropped when the queue is full.
package notify
