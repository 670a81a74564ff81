// Package versed is a conversational question answering service over a
// single book.
//
// A Service is opened from a config.Config. It ingests the book into a
// vector store and answers questions with a retrieval-augmented pipeline
// that remembers each session's conversation.
//
//	cfg, _ := config.Load("")
//	svc, err := versed.Open(cfg)
//	defer svc.Close()
//
//	conv, _ := svc.NewConversation("reader-42")
//	state, err := conv.Ask(ctx, chat.TurnRequest{Question: "Why does Arjuna refuse to fight?"})
package versed
