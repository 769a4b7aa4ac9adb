package entities

// VisibleText is a piece of text the vision model found in the frame
type VisibleText struct {
	Text     string `json:"text"`
	Location string `json:"location"`
}

// EntityInView is a smart-home entity matched to an object in the frame
type EntityInView struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Type      EntityType  `json:"type"`
	State     EntityState `json:"state"`
	IsFocused bool        `json:"is_focused"`
}

// VistaContext is the per-query snapshot sent to the reasoning model.
// It is rebuilt before every call and never stored.
type VistaContext struct {
	SceneDescription string         `json:"scene_description"`
	VisibleText      []VisibleText  `json:"visible_text"`
	EntitiesInView   []EntityInView `json:"entities_in_view"`
	AudioContext     string         `json:"audio_context"`
}

// VisionResult is the output of a cloud vision analysis of one frame
type VisionResult struct {
	SceneDescription string        `json:"scene_description"`
	VisibleText      []VisibleText `json:"visible_text"`
}
