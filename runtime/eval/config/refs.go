package config

// Param is one node parameter passed through to the execution backend.
type Param struct {
	Identifier string `json:"identifier"`
	Value      any    `json:"value"`
}

// VersionedPrompt is a prompt record loaded by the caller for a referenced
// prompt target.
type VersionedPrompt struct {
	ID            string    `json:"id"`
	Name          string    `json:"name,omitempty"`
	VersionNumber int       `json:"versionNumber"`
	Model         string    `json:"model"`
	Prompt        string    `json:"prompt"`
	Messages      []Message `json:"messages,omitempty"`
	Temperature   *float64  `json:"temperature,omitempty"`
	MaxTokens     *int      `json:"maxTokens,omitempty"`
	Inputs        []Field   `json:"inputs,omitempty"`
	Outputs       []Field   `json:"outputs,omitempty"`
}

// HTTPAuth selects and parameterizes the authentication scheme of an HTTP
// agent.
type HTTPAuth struct {
	Type AuthType `json:"type"`
	// Token is the bearer token for AuthBearer.
	Token string `json:"token,omitempty"`
	// Header and Key apply to AuthAPIKey.
	Header string `json:"header,omitempty"`
	Key    string `json:"key,omitempty"`
	// Username and Password apply to AuthBasic.
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// HTTPConfig carries transport settings for HTTP agents.
type HTTPConfig struct {
	URL          string            `json:"url"`
	Method       string            `json:"method"`
	BodyTemplate string            `json:"bodyTemplate,omitempty"`
	OutputPath   string            `json:"outputPath,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	TimeoutMS    int               `json:"timeoutMs,omitempty"`
	Auth         *HTTPAuth         `json:"auth,omitempty"`
}

// Agent is an agent record loaded by the caller for an agent target.
type Agent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AgentType AgentKind `json:"agentType"`

	// Parameters is the agent's node parameter list. For code and workflow
	// agents it is passed through verbatim; for signature agents the
	// top-level LLM, Prompt and Messages fields are normalized into it.
	Parameters []Param `json:"parameters,omitempty"`

	// LLM, Prompt and Messages are top-level signature-agent fields. They
	// may instead already be present in Parameters; assembly never
	// duplicates them.
	LLM      map[string]any `json:"llm,omitempty"`
	Prompt   string         `json:"prompt,omitempty"`
	Messages []Message      `json:"messages,omitempty"`

	// HTTP applies to HTTP agents.
	HTTP *HTTPConfig `json:"http,omitempty"`

	// Inputs are custom inputs declared on the agent beyond the fixed HTTP
	// input set.
	Inputs []Field `json:"inputs,omitempty"`
}

// Evaluator is an evaluator record loaded by the caller, keyed by database
// id. Settings always come from here, never from the caller's
// EvaluatorConfig.
type Evaluator struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
	// Guardrail marks evaluators whose output is intrinsically binary;
	// their score is stripped from emitted results.
	Guardrail bool           `json:"guardrail,omitempty"`
	Settings  map[string]any `json:"settings,omitempty"`
}

// References bundles the records the caller resolved before submitting a
// request: prompts by prompt id, agents by database agent id, evaluators by
// database evaluator id.
type References struct {
	Prompts    map[string]VersionedPrompt `json:"prompts,omitempty"`
	Agents     map[string]Agent           `json:"agents,omitempty"`
	Evaluators map[string]Evaluator       `json:"evaluators,omitempty"`
}

// Prompt returns the loaded prompt with the given id.
func (r *References) Prompt(id string) (VersionedPrompt, bool) {
	p, ok := r.Prompts[id]
	return p, ok
}

// Agent returns the loaded agent with the given database id.
func (r *References) Agent(id string) (Agent, bool) {
	a, ok := r.Agents[id]
	return a, ok
}

// Evaluator returns the loaded evaluator with the given database id.
func (r *References) Evaluator(id string) (Evaluator, bool) {
	e, ok := r.Evaluators[id]
	return e, ok
}
