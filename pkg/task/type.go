package task

const (
	// RedemptionSweepTask refunds redemptions stuck awaiting confirmation.
	RedemptionSweepTask = "redemption:sweep"
)
