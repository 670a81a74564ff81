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


package chat

import "errors"

var (
	// ErrRewriterRequired is returned when a query rewriter is not provided.
	ErrRewriterRequired = errors.New("query rewriter required")

	// ErrRetrieverRequired is returned when a retriever is not provided.
	ErrRetrieverRequired = errors.New("retriever required")

	// ErrSynthesizerRequired is returned when an answer synthesizer is not provided.
	ErrSynthesizerRequired = errors.New("answer synthesizer required")

	// ErrHistoryStoreRequired is returned when the pipeline reads history from
	// a store but none was provided.
	ErrHistoryStoreRequired = errors.New("history store required")

	// ErrCompleterRequired is returned when a completer is not provided.
	ErrCompleterRequired = errors.New("completer required")

	// ErrEmptyQuestion is returned when a turn carries no question.
	ErrEmptyQuestion = errors.New("question cannot be empty")

	// ErrInvalidCallTimeout is returned for a negative call timeout.
	ErrInvalidCallTimeout = errors.New("call timeout cannot be negative")
)
