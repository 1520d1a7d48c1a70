package operations

import "strings"

// Descriptor is the immutable metadata identifying an operation for observability.
type Descriptor struct {
	// DisplayName is the human-readable name of the operation.
	DisplayName string `json:"display_name"`

	// ProgressDisplayName is shown while the operation runs.
	ProgressDisplayName string `json:"progress_display_name"`

	// Details is an operation-kind-specific payload.
	Details interface{} `json:"details,omitempty"`
}

// DescriptorBuilder assembles a Descriptor.
type DescriptorBuilder struct {
	displayName         string
	progressDisplayName string
	details             interface{}
}

// DisplayName starts a descriptor with the given display name.
func DisplayName(name string) *DescriptorBuilder {
	return &DescriptorBuilder{displayName: name}
}

// Progress sets the progress display name.
func (b *DescriptorBuilder) Progress(label string) *DescriptorBuilder {
	b.progressDisplayName = label
	return b
}

// Details sets the details payload.
func (b *DescriptorBuilder) Details(details interface{}) *DescriptorBuilder {
	b.details = details
	return b
}

// Build validates the builder and returns the descriptor. The progress
// display name falls back to the display name.
func (b *DescriptorBuilder) Build() (Descriptor, error) {
	if b == nil {
		return Descriptor{}, newProtocolError("operation produced no descriptor", nil).
			WithCode(ErrCodeInvalidDescriptor)
	}
	if strings.TrimSpace(b.displayName) == "" {
		return Descriptor{}, newProtocolError("operation display name is required", nil).
			WithCode(ErrCodeInvalidDescriptor)
	}

	progress := b.progressDisplayName
	if strings.TrimSpace(progress) == "" {
		progress = b.displayName
	}

	return Descriptor{
		DisplayName:         b.displayName,
		ProgressDisplayName: progress,
		Details:             b.details,
	}, nil
}
