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


// Package ai defines the two model capabilities the book QA service needs:
// turning text into vectors (Embedder) and turning a rendered prompt into
// text (Completer). AIProvider bundles both behind one lifecycle.
//
// Ingestion, retrieval and answering only see these interfaces. The
// implementations live in sub-packages:
//
//   - ai/openai: langchaingo clients for OpenAI or any compatible server
//   - ai/mock: deterministic doubles for tests
//
// Production constructors return interfaces; mock constructors return the
// concrete mock so tests can inspect prompts and call counts.
//
//	config := ai.NewConfig(ai.WithAPIKey(key), ai.WithTemperature(0.7))
//	provider, err := openai.NewProvider(config)  // ai.AIProvider
//	if err != nil {
//	    return err
//	}
//	defer provider.Close()
//
// Config.Validate reports a hosted-API configuration without a key as
// core.ErrConfigurationMissing.
package ai
