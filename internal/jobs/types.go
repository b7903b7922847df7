package jobs

type JobType string

const (
	JobClaimConfirmation JobType = "claim.confirmation"
	JobStoryDeleted      JobType = "story.deleted"
)

// check to see if the job type is a known constant
func (t JobType) IsValid() bool {
	switch t {
	case JobClaimConfirmation, JobStoryDeleted:
		return true
	default:
		return false
	}
}
