package chat

import (
	"github.com/poiesic/versed/core"
	"github.com/tmc/langchaingo/prompts"
)

const standaloneWithHistoryTemplate = `Given some conversation history if any and a question, convert it into a standalone question.
{{.history}}
Human: {{.question}}
standalone question:`

const standaloneTemplate = `Given a question, convert it into a standalone question.
question: {{.question}}
standalone question:`

const answerTemplate = `You are an expert answering complex questions in simple terms so a layman can understand. ` +
	`Use the context and the conversation history to synthesize the answer. ` +
	`If the answer is not given in the context, find it in the conversation history if possible. ` +
	`If you really don't know the answer just say '` + core.RefusalAnswer + `' Do not make up the answer.
context: {{.context}}
conversation history: {{.history}}
question: {{.question}}
answer:`

func standaloneWithHistoryPrompt() prompts.PromptTemplate {
	return prompts.NewPromptTemplate(standaloneWithHistoryTemplate, []string{"history", "question"})
}

func standalonePrompt() prompts.PromptTemplate {
	return prompts.NewPromptTemplate(standaloneTemplate, []string{"question"})
}

func answerPrompt() prompts.PromptTemplate {
	return prompts.NewPromptTemplate(answerTemplate, []string{"context", "history", "question"})
}
