package scheduler

// QuotePollJob refreshes quotes and option chains into the cache
type QuotePollJob struct {
	JobBase
	poller QuotePoller
}

// NewQuotePollJob creates a new QuotePollJob
func NewQuotePollJob(poller QuotePoller) *QuotePollJob {
	return &QuotePollJob{
		JobBase: newJobBase(),
		poller:  poller,
	}
}

// Name returns the job name
func (j *QuotePollJob) Name() string {
	return "quote_poll"
}

// Run executes one poll
func (j *QuotePollJob) Run() error {
	ctx, cancel := j.runContext()
	defer cancel()

	result, err := j.poller.Poll(ctx)
	if err != nil {
		return err
	}

	if result.Skipped {
		j.log.Debug().Str("reason", result.Reason).Msg("Quote poll skipped")
		return nil
	}

	event := j.log.Debug()
	if result.OptionsErr > 0 {
		event = j.log.Warn()
	}
	event.
		Int("symbols", len(result.Symbols)).
		Int("option_chains", result.OptionsOK).
		Int("option_chain_errors", result.OptionsErr).
		Msg("Quote poll completed")
	return nil
}
