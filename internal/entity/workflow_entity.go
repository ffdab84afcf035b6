package entity

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Step is the wizard position. Order matters: steps only advance, except for
// restart (back to StepUpload) and a failed generation (back to StepPreferences).
type Step int

const (
	StepUpload Step = iota
	StepPreferences
	StepGenerating
	StepResults
)

var stepNames = map[Step]string{
	StepUpload:      "upload",
	StepPreferences: "preferences",
	StepGenerating:  "generating",
	StepResults:     "results",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

func (s Step) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Step) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for step, name := range stepNames {
		if strings.EqualFold(name, raw) {
			*s = step
			return nil
		}
	}
	return fmt.Errorf("unknown step %q", raw)
}

// InputImage describes the uploaded room photo as seen by clients.
type InputImage struct {
	PreviewUrl string `json:"preview_url"`
	MimeType   string `json:"mime_type"`
	Size       int    `json:"size"`
}

// WorkflowState is a point-in-time copy of a workflow, safe to serialize.
type WorkflowState struct {
	WorkspaceId             string         `json:"workspace_id"`
	Step                    Step           `json:"step"`
	InputImage              *InputImage    `json:"input_image"`
	Preferences             Preferences    `json:"preferences"`
	DesignOptions           []DesignOption `json:"design_options"`
	IsLoading               bool           `json:"is_loading"`
	LoadingMessage          string         `json:"loading_message"`
	LastError               *string        `json:"last_error"`
	ActiveEditTarget        *string        `json:"active_edit_target"`
	EditingOption           *DesignOption  `json:"editing_option,omitempty"`
	IsEditing               bool           `json:"is_editing"`
	ActivePerspectiveTarget *string        `json:"active_perspective_target"`
	SuggestedPalettes       []ColorPalette `json:"suggested_palettes"`
	IsGeneratingPalettes    bool           `json:"is_generating_palettes"`
}
