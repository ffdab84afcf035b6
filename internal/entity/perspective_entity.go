package entity

type Angle string

const (
	AngleFront Angle = "front"
	AngleLeft  Angle = "left"
	AngleRight Angle = "right"
	AngleTop   Angle = "top"
)

// Angles lists every camera angle in display order.
var Angles = []Angle{AngleFront, AngleLeft, AngleRight, AngleTop}

func (a Angle) Valid() bool {
	switch a {
	case AngleFront, AngleLeft, AngleRight, AngleTop:
		return true
	}
	return false
}

// PerspectiveSet is a snapshot of the synthesized views of one design option.
type PerspectiveSet struct {
	OptionId     string           `json:"option_id"`
	Images       map[Angle]string `json:"images"`
	MimeTypes    map[Angle]string `json:"mime_types"`
	CurrentView  Angle            `json:"current_view"`
	Loading      []Angle          `json:"loading"`
	LoadingAngle *Angle           `json:"loading_angle"`
	Errors       map[Angle]string `json:"errors,omitempty"`
	LastError    *string          `json:"last_error"`
}
