package protocol

// UploadResponse is returned for a completed upload. Status is always "ok";
// Warning is set when the deployment finished but the hosted server process
// could not be (re)started.
type UploadResponse struct {
	Status   string `json:"status"`
	DeployID string `json:"deploy_id,omitempty"`
	GameKey  string `json:"game_key"`
	Engine   string `json:"engine"`
	Warning  string `json:"warning,omitempty"`
}

// ErrorResponse is the uniform error body. Missing and Conflicts are only
// populated for validation failures so clients can report every problem at
// once.
type ErrorResponse struct {
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	Missing   []string `json:"missing,omitempty"`
	Conflicts []string `json:"conflicts,omitempty"`
}

// PortBinding mirrors one row of the durable world->port table.
type PortBinding struct {
	WorldName string `json:"world_name"`
	Port      int    `json:"port"`
	Running   bool   `json:"running"`
}

// DeploymentRecord is one entry of the deployment history.
type DeploymentRecord struct {
	DeployID   string `json:"deploy_id"`
	GameKey    string `json:"game_key"`
	Engine     string `json:"engine"`
	Outcome    string `json:"outcome"`
	Warning    string `json:"warning,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	CreatedAt  string `json:"created_at"`
}
