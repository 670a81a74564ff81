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


// Package search retrieves the passages a question is answered from.
//
// A Retriever embeds the question and asks the chunk store for the top-k
// most similar chunks, ordered by descending score. AssembleContext joins
// the retrieved passages into the context block handed to the answer prompt.
//
// Failures are reported with core.ErrRetrievalUnavailable, wrapped around
// core.ErrDownstreamTimeout when a call ran out of time or
// core.ErrUpstreamUnavailable otherwise. No matches is not an error.
package search
