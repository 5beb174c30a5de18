package outlook

// graphUser is the subset of the Graph /me resource the engine needs to
// label the session.
type graphUser struct {
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// graphEmailAddress is the nested address object inside a message sender.
type graphEmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type graphRecipient struct {
	EmailAddress graphEmailAddress `json:"emailAddress"`
}

// graphMessage is the subset of a Graph message selected by the inbox query.
type graphMessage struct {
	Subject          string          `json:"subject"`
	From             *graphRecipient `json:"from"`
	ReceivedDateTime string          `json:"receivedDateTime"`
	BodyPreview      string          `json:"bodyPreview"`
}

type graphMessageList struct {
	Value []graphMessage `json:"value"`
}

// graphErrorEnvelope is the standard Graph error body.
type graphErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
