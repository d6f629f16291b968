package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/crucible-ai/crucible/runtime/eval/config"
)

// Assembly is the result of assembling one cell: the executable graph plus
// the node ids the result mapper routes on.
type Assembly struct {
	Workflow         *Workflow
	TargetNodeID     string
	EvaluatorNodeIDs []string
}

// Assembler builds per-cell workflows from target and evaluator
// configurations, resolving references against the loaded records.
type Assembler struct {
	refs *config.References
}

// NewAssembler returns an assembler resolving references against refs. A nil
// refs is treated as empty; any referenced prompt, agent or evaluator then
// fails assembly with a ConfigError.
func NewAssembler(refs *config.References) *Assembler {
	if refs == nil {
		refs = &config.References{}
	}
	return &Assembler{refs: refs}
}

// Assemble synthesizes the graph for one cell: entry node, target node, and
// one evaluator node per attached evaluator, with edges derived from the
// cell's mappings.
func (a *Assembler) Assemble(cell *config.Cell) (*Assembly, error) {
	entry := buildEntryNode(cell)

	target, err := a.buildTargetNode(cell)
	if err != nil {
		return nil, err
	}

	w := &Workflow{Nodes: []*Node{entry, target}}
	if err := a.wireTarget(w, cell, target); err != nil {
		return nil, err
	}

	evaluatorIDs := make([]string, 0, len(cell.Evaluators))
	for i := range cell.Evaluators {
		ev := &cell.Evaluators[i]
		node, err := a.buildEvaluatorNode(cell, ev)
		if err != nil {
			return nil, err
		}
		w.Nodes = append(w.Nodes, node)
		if err := a.wireEvaluator(w, cell, ev, node); err != nil {
			return nil, err
		}
		evaluatorIDs = append(evaluatorIDs, node.ID)
	}

	return &Assembly{
		Workflow:         w,
		TargetNodeID:     target.ID,
		EvaluatorNodeIDs: evaluatorIDs,
	}, nil
}

// buildEntryNode mirrors the dataset column schema as entry outputs and
// embeds the cell's row as an inline single-row dataset. Output values are
// read from the entry keyed by column name, falling back to column id.
func buildEntryNode(cell *config.Cell) *Node {
	outputs := make([]Field, 0, len(cell.Columns))
	for _, col := range cell.Columns {
		outputs = append(outputs, Field{
			Identifier: col.ID,
			Type:       col.Type,
			Value:      cell.EntryValue(col.Name),
		})
	}
	return &Node{
		ID:      EntryNodeID,
		Type:    NodeEntry,
		Outputs: outputs,
		Dataset: &InlineDataset{
			ID:      cell.DatasetID,
			Columns: cell.Columns,
			Rows:    []config.Row{cell.Entry},
		},
	}
}

func (a *Assembler) buildTargetNode(cell *config.Cell) (*Node, error) {
	t := &cell.Target
	switch t.Type {
	case config.TargetPrompt:
		if t.LocalPrompt != nil {
			return signatureNodeFromLocal(t), nil
		}
		prompt, ok := a.refs.Prompt(t.PromptID)
		if !ok {
			return nil, config.NewConfigError("prompt %q referenced by target %q has not been loaded", t.PromptID, t.ID)
		}
		return signatureNodeFromPrompt(t, prompt), nil

	case config.TargetAgent:
		agent, ok := a.refs.Agent(t.DBAgentID)
		if !ok {
			return nil, config.NewConfigError("agent %q referenced by target %q has not been loaded", t.DBAgentID, t.ID)
		}
		switch agent.AgentType {
		case config.AgentHTTP:
			return httpNode(t, agent)
		case config.AgentSignature:
			return signatureNodeFromAgent(t, agent), nil
		case config.AgentCode, config.AgentWorkflow:
			return codeNode(t, agent), nil
		default:
			return nil, config.NewConfigError("agent %q has unsupported type %q", t.DBAgentID, agent.AgentType)
		}

	case config.TargetEvaluator:
		if t.TargetEvaluatorID == "" {
			return nil, config.NewConfigError("evaluator target %q is missing targetEvaluatorId", t.ID)
		}
		node := &Node{
			ID:        t.ID,
			Type:      NodeEvaluator,
			Evaluator: "evaluators/" + t.TargetEvaluatorID,
			Inputs:    fields(t.Inputs),
			Outputs:   verdictOutputs(),
		}
		if rec, ok := a.refs.Evaluator(t.TargetEvaluatorID); ok {
			node.Parameters = settingsParams(rec.Settings)
		}
		return node, nil

	default:
		return nil, config.NewConfigError("target %q has unsupported type %q", t.ID, t.Type)
	}
}

// signatureNodeFromLocal builds a signature node from an inline prompt: LLM
// parameters, the system messages as instructions, and the non-system
// messages.
func signatureNodeFromLocal(t *config.TargetConfig) *Node {
	lp := t.LocalPrompt
	inputs := t.Inputs
	if len(inputs) == 0 {
		inputs = lp.Inputs
	}
	outputs := t.Outputs
	if len(outputs) == 0 {
		outputs = lp.Outputs
	}
	return &Node{
		ID:         t.ID,
		Type:       NodeSignature,
		Inputs:     fields(inputs),
		Outputs:    fields(outputs),
		Parameters: signatureParams(lp.LLM, systemInstructions(lp.Messages, ""), nonSystemMessages(lp.Messages)),
	}
}

func signatureNodeFromPrompt(t *config.TargetConfig, prompt config.VersionedPrompt) *Node {
	inputs := t.Inputs
	if len(inputs) == 0 {
		inputs = prompt.Inputs
	}
	outputs := t.Outputs
	if len(outputs) == 0 {
		outputs = prompt.Outputs
	}
	llm := config.LLMConfig{
		Model:       prompt.Model,
		Temperature: prompt.Temperature,
		MaxTokens:   prompt.MaxTokens,
	}
	return &Node{
		ID:         t.ID,
		Type:       NodeSignature,
		Inputs:     fields(inputs),
		Outputs:    fields(outputs),
		Parameters: signatureParams(llm, systemInstructions(prompt.Messages, prompt.Prompt), nonSystemMessages(prompt.Messages)),
	}
}

// signatureNodeFromAgent normalizes the agent's top-level llm, prompt and
// messages fields into the parameters array, tolerating the case where they
// are already declared there. Parameters are never duplicated.
func signatureNodeFromAgent(t *config.TargetConfig, agent config.Agent) *Node {
	params := make([]config.Param, len(agent.Parameters))
	copy(params, agent.Parameters)

	if !hasParam(params, "llm") && agent.LLM != nil {
		params = append(params, config.Param{Identifier: "llm", Value: agent.LLM})
	}
	if !hasParam(params, "prompt") && agent.Prompt != "" {
		params = append(params, config.Param{Identifier: "prompt", Value: agent.Prompt})
	}
	if !hasParam(params, "messages") && len(agent.Messages) > 0 {
		params = append(params, config.Param{Identifier: "messages", Value: agent.Messages})
	}

	inputs := t.Inputs
	if len(inputs) == 0 {
		inputs = agent.Inputs
	}
	return &Node{
		ID:         t.ID,
		Type:       NodeSignature,
		Inputs:     fields(inputs),
		Outputs:    fields(t.Outputs),
		Parameters: params,
	}
}

// httpNode builds an http node with the fixed input set plus any custom
// inputs declared on the target.
func httpNode(t *config.TargetConfig, agent config.Agent) (*Node, error) {
	if agent.HTTP == nil {
		return nil, config.NewConfigError("http agent %q has no transport configuration", agent.ID)
	}
	h := agent.HTTP

	inputs := []Field{
		{Identifier: "threadId", Type: "str"},
		{Identifier: "messages", Type: "chat_messages"},
		{Identifier: "input", Type: "str"},
	}
	for _, f := range t.Inputs {
		if f.Identifier == "threadId" || f.Identifier == "messages" || f.Identifier == "input" {
			continue
		}
		inputs = append(inputs, Field{Identifier: f.Identifier, Type: f.Type})
	}

	params := []config.Param{
		{Identifier: "url", Value: h.URL},
		{Identifier: "method", Value: h.Method},
		{Identifier: "body_template", Value: h.BodyTemplate},
		{Identifier: "output_path", Value: h.OutputPath},
		{Identifier: "headers", Value: headerDict(h.Headers)},
		{Identifier: "timeout_ms", Value: h.TimeoutMS},
	}
	if h.Auth != nil {
		switch h.Auth.Type {
		case config.AuthNone, "":
			// no auth params
		case config.AuthBearer:
			params = append(params, config.Param{Identifier: "auth_token", Value: h.Auth.Token})
		case config.AuthAPIKey:
			params = append(params,
				config.Param{Identifier: "api_key_header", Value: h.Auth.Header},
				config.Param{Identifier: "api_key_value", Value: h.Auth.Key},
			)
		case config.AuthBasic:
			params = append(params,
				config.Param{Identifier: "basic_username", Value: h.Auth.Username},
				config.Param{Identifier: "basic_password", Value: h.Auth.Password},
			)
		default:
			return nil, config.NewConfigError("http agent %q has unsupported auth type %q", agent.ID, h.Auth.Type)
		}
	}

	return &Node{
		ID:         t.ID,
		Type:       NodeHTTP,
		Inputs:     inputs,
		Outputs:    fields(t.Outputs),
		Parameters: params,
	}, nil
}

// codeNode passes the agent's parameters through verbatim.
func codeNode(t *config.TargetConfig, agent config.Agent) *Node {
	inputs := t.Inputs
	if len(inputs) == 0 {
		inputs = agent.Inputs
	}
	return &Node{
		ID:         t.ID,
		Type:       NodeCode,
		Inputs:     fields(inputs),
		Outputs:    fields(t.Outputs),
		Parameters: agent.Parameters,
	}
}

// buildEvaluatorNode materializes one evaluator node with composite id
// "{targetId}.{evaluatorId}". Settings come from the loaded Evaluator record,
// never from the caller's config.
func (a *Assembler) buildEvaluatorNode(cell *config.Cell, ev *config.EvaluatorConfig) (*Node, error) {
	node := &Node{
		ID:      cell.Target.ID + "." + ev.ID,
		Type:    NodeEvaluator,
		Inputs:  fields(ev.Inputs),
		Outputs: verdictOutputs(),
	}
	if ev.DBEvaluatorID != "" {
		rec, ok := a.refs.Evaluator(ev.DBEvaluatorID)
		if !ok {
			return nil, config.NewConfigError("evaluator %q referenced by %q has not been loaded", ev.DBEvaluatorID, ev.ID)
		}
		node.Evaluator = "evaluators/" + ev.DBEvaluatorID
		node.Parameters = settingsParams(rec.Settings)
	} else {
		node.Evaluator = ev.EvaluatorType
	}
	return node, nil
}

// wireTarget applies the target's mappings for the cell's dataset: value
// mappings are baked into node inputs, dataset-source mappings become edges
// from the entry node.
func (a *Assembler) wireTarget(w *Workflow, cell *config.Cell, target *Node) error {
	mappings := cell.Target.Mappings[cell.DatasetID]
	for _, field := range sortedKeys(mappings) {
		m := mappings[field]
		switch m.Type {
		case config.MappingValue:
			setInputValue(target, field, m.Value)
		case config.MappingSource:
			if m.Source != config.SourceDataset {
				continue
			}
			w.Edges = append(w.Edges, edge(EntryNodeID, cell.ColumnID(m.SourceField), target.ID, field))
		}
	}
	return nil
}

// wireEvaluator applies the evaluator's mappings for (dataset, target):
// dataset sources wire from the entry node, target sources from the target
// node, value mappings are baked in.
func (a *Assembler) wireEvaluator(w *Workflow, cell *config.Cell, ev *config.EvaluatorConfig, node *Node) error {
	mappings := ev.MappingsFor(cell.DatasetID, cell.Target.ID)
	for _, field := range sortedKeys(mappings) {
		m := mappings[field]
		switch m.Type {
		case config.MappingValue:
			setInputValue(node, field, m.Value)
		case config.MappingSource:
			switch {
			case m.Source == config.SourceDataset:
				w.Edges = append(w.Edges, edge(EntryNodeID, cell.ColumnID(m.SourceField), node.ID, field))
			case m.Source == config.SourceTarget && m.SourceID == cell.Target.ID:
				w.Edges = append(w.Edges, edge(cell.Target.ID, m.SourceField, node.ID, field))
			}
		}
	}
	return nil
}

func edge(source, sourceField, target, targetField string) Edge {
	return Edge{
		ID:           fmt.Sprintf("%s.%s->%s.%s", source, sourceField, target, targetField),
		Source:       source,
		SourceHandle: "outputs." + sourceField,
		Target:       target,
		TargetHandle: "inputs." + targetField,
	}
}

// setInputValue binds a literal to the named input, declaring the input when
// the node did not already carry it.
func setInputValue(n *Node, identifier string, value any) {
	if in, ok := n.Input(identifier); ok {
		in.Value = value
		return
	}
	n.Inputs = append(n.Inputs, Field{Identifier: identifier, Type: "str", Value: value})
}

// verdictOutputs is the fixed output triple of evaluator nodes.
func verdictOutputs() []Field {
	return []Field{
		{Identifier: "passed", Type: "bool"},
		{Identifier: "score", Type: "float"},
		{Identifier: "label", Type: "str"},
	}
}

func fields(fs []config.Field) []Field {
	out := make([]Field, 0, len(fs))
	for _, f := range fs {
		out = append(out, Field{Identifier: f.Identifier, Type: f.Type})
	}
	return out
}

// signatureParams assembles the canonical signature parameter list.
func signatureParams(llm config.LLMConfig, instructions string, messages []config.Message) []config.Param {
	llmValue := map[string]any{"model": llm.Model}
	if llm.Temperature != nil {
		llmValue["temperature"] = *llm.Temperature
	}
	if llm.MaxTokens != nil {
		llmValue["max_tokens"] = *llm.MaxTokens
	}
	params := []config.Param{{Identifier: "llm", Value: llmValue}}
	if instructions != "" {
		params = append(params, config.Param{Identifier: "instructions", Value: instructions})
	}
	if len(messages) > 0 {
		params = append(params, config.Param{Identifier: "messages", Value: messages})
	}
	return params
}

// systemInstructions joins the prompt's system messages, prepending the
// standalone system prompt when present.
func systemInstructions(messages []config.Message, prompt string) string {
	parts := make([]string, 0, len(messages)+1)
	if prompt != "" {
		parts = append(parts, prompt)
	}
	for _, m := range messages {
		if m.Role == "system" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

func nonSystemMessages(messages []config.Message) []config.Message {
	var out []config.Message
	for _, m := range messages {
		if m.Role != "system" {
			out = append(out, m)
		}
	}
	return out
}

// settingsParams converts an evaluator settings map into a deterministic
// parameter list.
func settingsParams(settings map[string]any) []config.Param {
	params := make([]config.Param, 0, len(settings))
	for _, k := range sortedSettingKeys(settings) {
		params = append(params, config.Param{Identifier: k, Value: settings[k]})
	}
	return params
}

func hasParam(params []config.Param, identifier string) bool {
	for _, p := range params {
		if p.Identifier == identifier {
			return true
		}
	}
	return false
}

// headerDict normalizes a nil header map to an empty dict so the backend
// always receives an object.
func headerDict(headers map[string]string) map[string]string {
	if headers == nil {
		return map[string]string{}
	}
	return headers
}

func sortedKeys(m map[string]config.Mapping) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedSettingKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
