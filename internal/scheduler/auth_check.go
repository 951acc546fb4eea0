package scheduler

// AuthCheckJob keeps the broker session state fresh between requests.
// The tracker caches its verdict, so most runs cost nothing.
type AuthCheckJob struct {
	JobBase
	checker AuthChecker
}

// NewAuthCheckJob creates a new AuthCheckJob
func NewAuthCheckJob(checker AuthChecker) *AuthCheckJob {
	return &AuthCheckJob{
		JobBase: newJobBase(),
		checker: checker,
	}
}

// Name returns the job name
func (j *AuthCheckJob) Name() string {
	return "auth_check"
}

// Run executes the auth check
func (j *AuthCheckJob) Run() error {
	ctx, cancel := j.runContext()
	defer cancel()

	valid := j.checker.IsValid(ctx)
	j.log.Debug().Bool("valid", valid).Msg("Auth check completed")
	return nil
}
