package letter

// SendMetaData carries the deployment-level recipient lists that steer an
// outbound send. Which lists matter depends on the transport's send level.
type SendMetaData struct {
	DebugRecipients       []string `json:"debugRecipients"`
	DefaultBCCRecipients  []string `json:"defaultBccRecipients"`
	ProdSupportRecipients []string `json:"prodSupportRecipients"`
}

// SendRequest is a request to send a letter's email without persisting it.
type SendRequest struct {
	Letter   *Letter       `json:"letter"`
	MetaData *SendMetaData `json:"sendMetaData"`
}
