package config

// TargetType discriminates the target configuration union.
type TargetType string

const (
	// TargetPrompt evaluates a prompt, either inline or referenced.
	TargetPrompt TargetType = "prompt"
	// TargetAgent evaluates an agent referenced by database id.
	TargetAgent TargetType = "agent"
	// TargetEvaluator evaluates an evaluator directly; its verdict is the
	// target's output.
	TargetEvaluator TargetType = "evaluator"
)

// AgentKind discriminates agent sub-types.
type AgentKind string

const (
	// AgentHTTP calls a remote HTTP endpoint.
	AgentHTTP AgentKind = "http"
	// AgentSignature runs an LLM signature.
	AgentSignature AgentKind = "signature"
	// AgentCode runs a code snippet.
	AgentCode AgentKind = "code"
	// AgentWorkflow runs a nested workflow.
	AgentWorkflow AgentKind = "workflow"
)

// AuthType selects the authentication scheme for HTTP agents.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthBearer AuthType = "bearer"
	AuthAPIKey AuthType = "api_key"
	AuthBasic  AuthType = "basic"
)

// Field declares a typed input or output of a target or evaluator.
type Field struct {
	Identifier string `json:"identifier"`
	Type       string `json:"type"`
}

// Message is one chat message of a prompt.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMConfig carries model selection and sampling parameters.
type LLMConfig struct {
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty"`
}

// LocalPromptConfig is an inline prompt definition carried directly on a
// target, as opposed to a reference resolved to a VersionedPrompt.
type LocalPromptConfig struct {
	LLM      LLMConfig `json:"llm"`
	Messages []Message `json:"messages,omitempty"`
	Inputs   []Field   `json:"inputs,omitempty"`
	Outputs  []Field   `json:"outputs,omitempty"`
}

// TargetConfig describes one thing under evaluation. Exactly one variant
// applies depending on Type; the shared fields (Inputs, Outputs, Mappings)
// apply to all variants.
type TargetConfig struct {
	// ID identifies the target. It must not contain a dot: evaluator node
	// ids are composed as "{targetId}.{evaluatorId}" and split on the first
	// dot.
	ID   string     `json:"id"`
	Type TargetType `json:"type"`

	Inputs   []Field        `json:"inputs,omitempty"`
	Outputs  []Field        `json:"outputs,omitempty"`
	Mappings TargetMappings `json:"mappings,omitempty"`

	// Prompt variant. LocalPrompt takes precedence; otherwise PromptID
	// references a VersionedPrompt resolved by the caller.
	LocalPrompt         *LocalPromptConfig `json:"localPromptConfig,omitempty"`
	PromptID            string             `json:"promptId,omitempty"`
	PromptVersionNumber *int               `json:"promptVersionNumber,omitempty"`

	// Agent variant.
	AgentType AgentKind `json:"agentType,omitempty"`
	DBAgentID string    `json:"dbAgentId,omitempty"`

	// Evaluator variant.
	TargetEvaluatorID string `json:"targetEvaluatorId,omitempty"`
}
