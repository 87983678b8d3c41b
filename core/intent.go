package core

// Command is the closed set of structured commands an utterance can map to.
type Command string

const (
	CommandCapturePhoto     Command = "capture_photo"
	CommandAnalyzeRoom      Command = "analyze_room"
	CommandRemoveWall       Command = "remove_wall"
	CommandAddWindow        Command = "add_window"
	CommandAddDoor          Command = "add_door"
	CommandChangeStyle      Command = "change_style"
	CommandChangeColor      Command = "change_color"
	CommandCalculateCost    Command = "calculate_cost"
	CommandEstimateTimeline Command = "estimate_timeline"
	CommandSaveDesign       Command = "save_design"
	CommandUndo             Command = "undo"
	CommandHelp             Command = "help"
)

// Intent is a parsed command derived deterministically from an utterance. It
// is stateless and discarded after dispatch.
type Intent struct {
	Command    Command           `json:"command"`
	Parameters map[string]string `json:"parameters"`
	Confidence float64           `json:"confidence"`
	Utterance  string            `json:"utterance"`
}
