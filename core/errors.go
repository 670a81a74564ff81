// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"context"
	"errors"
	"fmt"
)

// Pipeline failure taxonomy
var (
	// ErrConfigurationMissing indicates a required credential or URL is absent.
	ErrConfigurationMissing = errors.New("configuration missing")

	// ErrUpstreamUnavailable indicates an external provider or store could not be reached.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrDownstreamTimeout indicates an external call exceeded its time budget.
	ErrDownstreamTimeout = errors.New("downstream timeout")

	// ErrRetrievalUnavailable indicates the embedding provider or vector store failed
	// while retrieving context.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrHistoryPersistFailure indicates a completed turn could not be appended to history.
	ErrHistoryPersistFailure = errors.New("history persist failure")
)

// Domain validation errors
var (
	// ErrInvalidTurn indicates a Turn failed validation.
	ErrInvalidTurn = errors.New("invalid turn")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrEmptyContent indicates the content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidRole indicates an invalid Role value.
	ErrInvalidRole = errors.New("invalid role")

	// ErrEmptySource indicates chunk metadata is missing its source.
	ErrEmptySource = errors.New("source cannot be empty")

	// ErrEmptySessionID indicates a session identifier was not provided.
	ErrEmptySessionID = errors.New("session id cannot be empty")
)

// ClassifyCallError wraps err from an external call with the matching taxonomy
// sentinel. Deadline expiry becomes ErrDownstreamTimeout; anything else is
// treated as ErrUpstreamUnavailable. Cancellation by the caller is passed through.
func ClassifyCallError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrDownstreamTimeout), errors.Is(err, ErrUpstreamUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrDownstreamTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
}
