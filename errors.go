package resumeflow

import "errors"

var (
	// ErrResumeNotFound is returned when a resume ID does not exist.
	ErrResumeNotFound = errors.New("resumeflow: resume not found")

	// ErrEmptyFile is returned when an uploaded file has no content.
	ErrEmptyFile = errors.New("resumeflow: empty file")

	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("resumeflow: unsupported document format")

	// ErrInsufficientText is returned when text extraction produced too
	// little content to run the pipeline.
	ErrInsufficientText = errors.New("resumeflow: insufficient text extracted")

	// ErrModelUnavailable is returned when the model server is unreachable.
	ErrModelUnavailable = errors.New("resumeflow: model server unavailable")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("resumeflow: invalid configuration")
)
