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


// Package openai implements ai.AIProvider with langchaingo's OpenAI client.
//
// Embedding and chat hosts are configured separately, so a local Ollama or
// vLLM server can serve one while the hosted API serves the other. The
// embedder rejects responses with the wrong vector count or a dimension
// that differs from earlier calls (ErrEmbeddingShape); a store mixing
// dimensions cannot be searched.
//
// NewCompleterFromModel adapts any llms.Model, which is how tests plug in
// langchaingo's fake model.
package openai
