package server

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// inboundSchema gates every channel message before it reaches the
// lifecycle controller; a violation gets an explicit error reply and
// the connection stays open.
const inboundSchema = `{
	"type": "object",
	"properties": {
		"conversationId": {"type": "integer", "minimum": 1},
		"text": {"type": "string"},
		"action": {"type": "string", "enum": ["assess"]},
		"documentMode": {"type": "boolean"}
	},
	"additionalProperties": false
}`

var compiledInbound = mustCompileSchema("inbound.json", inboundSchema)

func mustCompileSchema(name, src string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, strings.NewReader(src)); err != nil {
		panic(fmt.Sprintf("schema resource %s: %v", name, err))
	}
	return c.MustCompile(name)
}

// inboundMessage is one client request on the channel. A message with
// text submits a user turn; without text it requests history; with
// action "assess" it requests document-mode criterion feedback.
type inboundMessage struct {
	ConversationID int64  `json:"conversationId"`
	Text           string `json:"text"`
	Action         string `json:"action"`
	DocumentMode   bool   `json:"documentMode"`
}

// parseInbound validates raw against the channel schema and decodes it.
func parseInbound(raw []byte) (inboundMessage, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return inboundMessage{}, fmt.Errorf("invalid json: %w", err)
	}
	if err := compiledInbound.Validate(generic); err != nil {
		return inboundMessage{}, fmt.Errorf("invalid message shape: %w", err)
	}
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return inboundMessage{}, fmt.Errorf("invalid message: %w", err)
	}
	return msg, nil
}
