package flow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

)

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParseFile parses a single scenario file.
func ParseFile(path string) (*Flow, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided flow file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses scenario YAML. A file is either a step list, or a header
// document and a step list separated by "---".
func Parse(data []byte, sourcePath string) (*Flow, error) {
	parts := splitYAMLDocuments(string(data))

	flow := &Flow{
		SourcePath: sourcePath,
	}

	if len(parts) == 0 {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    1,
			Message: "empty flow file",
		}
	}

	switch len(parts) {
	case 1:
		if err := parseSteps(parts[0], 0, flow); err != nil {
			return nil, err
		}
	case 2:
		if err := parseConfig(parts[0], flow); err != nil {
			return nil, err
		}
		if err := parseSteps(parts[1], strings.Count(parts[0], "\n")+1, flow); err != nil {
			return nil, err
		}
	default:
		return nil, &ParseError{
			Path:    sourcePath,
			Message: fmt.Sprintf("expected at most 2 documents, found %d", len(parts)),
		}
	}

	return flow, nil
}

// splitYAMLDocuments splits on "---" lines outside block scalars.
func splitYAMLDocuments(content string) []string {
	var parts []string
	var current strings.Builder
	inMultiline := false
	multilineIndent := 0

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if !inMultiline {
			if strings.HasSuffix(trimmed, "|") || strings.HasSuffix(trimmed, ">") ||
				strings.HasSuffix(trimmed, "|-") || strings.HasSuffix(trimmed, ">-") {
				inMultiline = true
				if i+1 < len(lines) {
					next := lines[i+1]
					multilineIndent = len(next) - len(strings.TrimLeft(next, " \t"))
				}
			}
		} else {
			indent := len(line) - len(strings.TrimLeft(line, " \t"))
			if trimmed != "" && indent < multilineIndent {
				inMultiline = false
			}
		}

		if !inMultiline && trimmed == "---" && strings.TrimLeft(line, " \t") == "---" {
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		} else {
			current.WriteString(line)
			current.WriteString("\n")
		}
	}

	if current.Len() > 0 {
		s := strings.TrimSpace(current.String())
		if s != "" {
			parts = append(parts, current.String())
		}
	}

	return parts
}

func parseConfig(content string, flow *Flow) error {
	var config Config
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return &ParseError{
			Path:    flow.SourcePath,
			Message: fmt.Sprintf("invalid header: %v", err),
		}
	}
	flow.Config = config
	return nil
}

// parseSteps decodes the step list; lineOffset maps document lines back
// to file lines.
func parseSteps(content string, lineOffset int, flow *Flow) error {
	var rawSteps []yaml.Node
	if err := yaml.Unmarshal([]byte(content), &rawSteps); err != nil {
		return &ParseError{
			Path:    flow.SourcePath,
			Message: fmt.Sprintf("invalid steps: %v", err),
		}
	}

	for i := range rawSteps {
		step, err := parseStep(&rawSteps[i], flow.SourcePath)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) && pe.Line > 0 {
				pe.Line += lineOffset
			}
			return err
		}
		flow.Steps = append(flow.Steps, step)
	}

	return nil
}

func parseStep(node *yaml.Node, sourcePath string) (Step, error) {
	// Handle scalar nodes like "- resetState" (no colon, no params)
	if node.Kind == yaml.ScalarNode {
		stepType := node.Value
		if !isStepType(stepType) {
			return nil, &ParseError{
				Path:    sourcePath,
				Line:    node.Line,
				Message: fmt.Sprintf("unknown step type: %s", stepType),
			}
		}
		emptyNode := &yaml.Node{Kind: yaml.MappingNode, Line: node.Line}
		return decodeStep(StepType(stepType), emptyNode, sourcePath)
	}

	if node.Kind != yaml.MappingNode {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    node.Line,
			Message: "step must be a mapping or command name",
		}
	}

	stepType, valueNode := extractStepType(node)
	if stepType == "" || valueNode == nil {
		msg := "unknown step type"
		if len(node.Content) > 0 {
			msg = fmt.Sprintf("unknown step type: %s", node.Content[0].Value)
		}
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    node.Line,
			Message: msg,
		}
	}

	return decodeStep(StepType(stepType), valueNode, sourcePath)
}

func extractStepType(node *yaml.Node) (string, *yaml.Node) {
	for i := 0; i < len(node.Content)-1; i += 2 {
		key := node.Content[i].Value
		if isStepType(key) {
			return key, node.Content[i+1]
		}
	}
	return "", nil
}

func isStepType(key string) bool {
	switch StepType(key) {
	case StepTapOn, StepFocusOn, StepInputText, StepClearText,
		StepAssertVisible, StepAssertNotVisible, StepWaitForToast,
		StepAssertText, StepWaitForToggle, StepSetToggle,
		StepSwitchContext, StepResetState:
		return true
	}
	return false
}

// emptyValue reports a step written as "- tapOn:" with nothing after it.
func emptyValue(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}

// needsMapping lists the targeted steps that cannot be written as a bare name.
var needsMapping = map[StepType]string{
	StepInputText:  "inputText needs a mapping with a target and text",
	StepAssertText: "assertText needs a mapping with a target and equals or contains",
}

// newTargeted returns an empty step for the selector-based step types.
func newTargeted(t StepType) Targeted {
	base := BaseStep{StepType: t}
	switch t {
	case StepTapOn:
		return &TapOnStep{BaseStep: base}
	case StepFocusOn:
		return &FocusOnStep{BaseStep: base}
	case StepInputText:
		return &InputTextStep{BaseStep: base}
	case StepAssertVisible:
		return &AssertVisibleStep{BaseStep: base}
	case StepAssertNotVisible:
		return &AssertNotVisibleStep{BaseStep: base}
	case StepWaitForToast:
		return &WaitForToastStep{BaseStep: base}
	case StepClearText:
		return &ClearTextStep{BaseStep: base}
	case StepAssertText:
		return &AssertTextStep{BaseStep: base}
	case StepWaitForToggle:
		return &WaitForToggleStep{BaseStep: base}
	case StepSetToggle:
		return &SetToggleStep{WaitForToggleStep{BaseStep: base}}
	}
	return nil
}

func decodeStep(stepType StepType, valueNode *yaml.Node, sourcePath string) (Step, error) {
	if step := newTargeted(stepType); step != nil {
		if msg := needsMapping[stepType]; msg != "" && valueNode.Kind != yaml.MappingNode {
			return nil, &ParseError{Path: sourcePath, Line: valueNode.Line, Message: msg}
		}
		if err := decodeTargeted(valueNode, step, step.Target(), sourcePath); err != nil {
			return nil, err
		}
		if s, ok := step.(*AssertTextStep); ok && s.Equals == nil && s.Contains == "" {
			return nil, &ParseError{
				Path:    sourcePath,
				Line:    valueNode.Line,
				Message: "assertText needs equals or contains",
			}
		}
		return step, nil
	}

	switch stepType {
	case StepSwitchContext:
		s := &SwitchContextStep{BaseStep: BaseStep{StepType: stepType}}
		if valueNode.Kind == yaml.ScalarNode && !emptyValue(valueNode) {
			s.Window = valueNode.Value
		} else if err := valueNode.Decode(s); err != nil {
			return nil, wrapParseError(sourcePath, valueNode.Line, err)
		}
		if s.Window == "" {
			return nil, &ParseError{
				Path:    sourcePath,
				Line:    valueNode.Line,
				Message: "switchContext needs a window name",
			}
		}
		return s, nil

	case StepResetState:
		s := &ResetStateStep{BaseStep: BaseStep{StepType: stepType}}
		if valueNode.Kind == yaml.MappingNode {
			if err := valueNode.Decode(s); err != nil {
				return nil, wrapParseError(sourcePath, valueNode.Line, err)
			}
		}
		return s, nil
	}

	return nil, &ParseError{
		Path:    sourcePath,
		Line:    valueNode.Line,
		Message: fmt.Sprintf("unsupported step type: %s", stepType),
	}
}

// decodeTargeted fills a step whose value is either a scalar name or a
// mapping of selector and step fields.
func decodeTargeted(valueNode *yaml.Node, step interface{}, sel *Selector, sourcePath string) error {
	if valueNode.Kind == yaml.ScalarNode {
		if emptyValue(valueNode) {
			return &ParseError{Path: sourcePath, Line: valueNode.Line, Message: "missing target"}
		}
		sel.Name = valueNode.Value
		return nil
	}
	if err := valueNode.Decode(step); err != nil {
		return wrapParseError(sourcePath, valueNode.Line, err)
	}
	// "text" is a name alias, as in standalone selectors
	if sel.Name == "" {
		var alias struct {
			Text string `yaml:"text"`
		}
		if valueNode.Decode(&alias) == nil {
			sel.Name = alias.Text
		}
	}
	return nil
}

func wrapParseError(path string, line int, err error) error {
	return &ParseError{
		Path:    path,
		Line:    line,
		Message: err.Error(),
	}
}

// IsFlowFile reports whether path has a scenario extension. Runner config
// files (a11y.yaml, a11y.yml) are not flows.
func IsFlowFile(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	if base == "a11y.yaml" || base == "a11y.yml" {
		return false
	}
	ext := filepath.Ext(base)
	return ext == ".yaml" || ext == ".yml"
}

// ShouldIncludeFlow reports whether a flow carries one of includeTags (when
// any are given) and none of excludeTags.
func ShouldIncludeFlow(flow *Flow, includeTags, excludeTags []string) bool {
	hasAny := func(want []string) bool {
		for _, tag := range flow.Config.Tags {
			if slices.Contains(want, tag) {
				return true
			}
		}
		return false
	}
	if len(includeTags) > 0 && !hasAny(includeTags) {
		return false
	}
	return !hasAny(excludeTags)
}
