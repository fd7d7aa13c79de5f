package newsletter

// Stage is a step of a generation run. Runs move strictly forward.
type Stage int

const (
	StageGrouping Stage = iota
	StageBuildingSections
	StageAssemblingHTML
	StageRenderingPDF
	StageSending
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageGrouping:
		return "GROUPING"
	case StageBuildingSections:
		return "BUILDING_SECTIONS"
	case StageAssemblingHTML:
		return "ASSEMBLING_HTML"
	case StageRenderingPDF:
		return "RENDERING_PDF"
	case StageSending:
		return "SENDING"
	case StageDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}
