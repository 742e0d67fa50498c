// Package chatmodel implements the Chat Model Client (spec §4.C): sending
// a tagged message sequence to an LLM and returning a text completion. It
// knows nothing about JSON — callers (the re-ranker, the conversational
// filter) embed their own formatting instructions in the prompt.
package chatmodel

import (
	"github.com/cloudwego/eino/components/model"
)

// Client is cloudwego/eino's chat model contract. The re-ranker and the
// conversational filter only ever call Generate; tool binding exists so a
// provider that wants structured function-calling support can still
// satisfy the interface, though nothing in this core binds tools today.
type Client = model.ToolCallingChatModel
