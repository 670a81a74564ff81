// Package chat answers questions about the indexed book, one turn at a time.
//
// A turn moves through fixed stages: the question is rewritten into a
// standalone question, the most similar chunks are retrieved, an answer is
// synthesized from the retrieved context and the conversation history, and
// finally the question and answer are appended to the session's history.
//
// Pipelines are cheap values built per request with NewPipeline. They hold
// no conversation state of their own; history lives in a storage.HistoryStore
// or is supplied by the caller, depending on the HistoryMode. Turns within one
// session are serialized through a shared SessionLocks so appends never
// interleave.
//
// Basic usage:
//
//	p, err := chat.NewPipeline(chat.Deps{
//		Rewriter:    rewriter,
//		Retriever:   retriever,
//		Synthesizer: synthesizer,
//		History:     historyStore,
//	}, chat.WithSessionLocks(locks))
//	state, err := p.Ask(ctx, chat.TurnRequest{SessionID: "abc", Question: "Who is Arjuna?"})
//	fmt.Println(state.Answer)
package chat
