package championship

import "github.com/google/uuid"

type Participant struct {
	ChampionshipID    uuid.UUID `db:"championship_id" json:"championship_id"`
	ID                int64     `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	Rating            int       `db:"rating" json:"rating"`
	RegistrationOrder int       `db:"registration_order" json:"registration_order"`
	Withdrawn         bool      `db:"withdrawn" json:"withdrawn"`
	Eliminated        bool      `db:"eliminated" json:"eliminated"`
}

// Bye is the half point handed to the odd player out of a Swiss round.
type Bye struct {
	ChampionshipID uuid.UUID `db:"championship_id" json:"championship_id"`
	RoundNumber    int       `db:"round_number" json:"round_number"`
	ParticipantID  int64     `db:"participant_id" json:"participant_id"`
}

const ByePoints = 0.5
