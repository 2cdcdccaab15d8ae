package fotmob

type matchDetailsEnvelope struct {
	General struct {
		MatchID  flexString `json:"matchId"`
		Started  bool       `json:"started"`
		Finished bool       `json:"finished"`
	} `json:"general"`
	Header struct {
		Teams  []headerTeam `json:"teams"`
		Status matchStatus  `json:"status"`
	} `json:"header"`
	Content struct {
		MatchFacts struct {
			Events struct {
				Events []matchEvent `json:"events"`
			} `json:"events"`
		} `json:"matchFacts"`
	} `json:"content"`
}

type headerTeam struct {
	Name  string `json:"name"`
	Score *int   `json:"score"`
}

type matchStatus struct {
	UTCTime   string `json:"utcTime"`
	Started   bool   `json:"started"`
	Finished  bool   `json:"finished"`
	Cancelled bool   `json:"cancelled"`
	Reason    struct {
		Short string `json:"short"`
		Long  string `json:"long"`
	} `json:"reason"`
	LiveTime struct {
		Short   string `json:"short"`
		MaxTime int    `json:"maxTime"`
	} `json:"liveTime"`
}

type matchEvent struct {
	Type               string `json:"type"`
	IsHome             bool   `json:"isHome"`
	NameStr            string `json:"nameStr"`
	Time               int    `json:"time"`
	OverloadTime       int    `json:"overloadTime"`
	OwnGoal            bool   `json:"ownGoal"`
	IsPenalty          bool   `json:"isPenalty"`
	GoalDescriptionKey string `json:"goalDescriptionKey"`
	Card               string `json:"card"`
	HalfStrShort       string `json:"halfStrShort"`
}

// flexString accepts both JSON strings and numbers; FotMob is inconsistent
// about match ids.
type flexString string

func (s *flexString) UnmarshalJSON(raw []byte) error {
	text := string(raw)
	if text == "null" {
		*s = ""
		return nil
	}
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		text = text[1 : len(text)-1]
	}
	*s = flexString(text)
	return nil
}
