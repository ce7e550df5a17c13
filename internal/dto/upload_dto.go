package dto

// UploadResponse describes a stored attachment. Ref is the opaque reference a
// learner passes back in a submission.
type UploadResponse struct {
	Ref       string `json:"ref"`
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// UploadBatchResponse wraps the attachments stored by one request.
type UploadBatchResponse struct {
	Items []UploadResponse `json:"items"`
}
