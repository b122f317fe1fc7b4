package championship

import "errors"

var (
	ErrNotFound      = errors.New("requested resource not found")
	ErrInvalidConfig = errors.New("invalid championship configuration")

	ErrInvalidRoundOrder        = errors.New("round generated out of order")
	ErrInsufficientParticipants = errors.New("not enough active participants to pair")
	ErrDuplicateRoundGeneration = errors.New("round already generated")
	ErrInvalidSeedCount         = errors.New("seed count is not a power of two")
	ErrRoundLocked              = errors.New("round is locked until its prerequisites complete")

	ErrMatchAlreadyCompleted = errors.New("match already completed")
	ErrMatchNotReady         = errors.New("match players are not known yet")
	ErrInvalidResult         = errors.New("invalid match result")

	// ErrUnresolvedPrerequisite is a "try later" signal carried by resolutions, not a failure.
	ErrUnresolvedPrerequisite = errors.New("placeholder prerequisites incomplete")
	ErrNotPlaceholder         = errors.New("match is not a placeholder")

	ErrWithdrawalClosed = errors.New("withdrawals are closed once elimination rounds exist")
)
