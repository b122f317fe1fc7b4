package championship

import "github.com/google/uuid"

type Standing struct {
	ChampionshipID  uuid.UUID `db:"championship_id" json:"-"`
	ParticipantID   int64     `db:"participant_id" json:"participant_id"`
	Rank            int       `db:"rank" json:"rank"`
	Points          float64   `db:"points" json:"points"`
	Played          int       `db:"played" json:"played"`
	Wins            int       `db:"wins" json:"wins"`
	Draws           int       `db:"draws" json:"draws"`
	Losses          int       `db:"losses" json:"losses"`
	Byes            int       `db:"byes" json:"byes"`
	Buchholz        float64   `db:"buchholz" json:"buchholz"`
	SonnebornBerger float64   `db:"sonneborn_berger" json:"sonneborn_berger"`
	Rating          int       `db:"rating" json:"rating"`
	Withdrawn       bool      `db:"withdrawn" json:"withdrawn"`
	FinalPosition   *int      `db:"final_position" json:"final_position,omitempty"`

	RegistrationOrder int `db:"-" json:"-"`
}
