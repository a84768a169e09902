// Package simpletransform provides a reusable library for building
// content-transformation worker nodes with pluggable storage backends.
//
// A node consumes TransformationRequest messages, resolves the source and
// target ContentReferences through a ReferenceHandler (e.g., filesystem, S3,
// memory), invokes a Transformer (e.g., ffmpeg transcode, content digest),
// and emits TransformationReply messages for every state transition:
// IN_PROGRESS on start and progress, then exactly one COMPLETE or FAILED.
//
// Storage backends live under subpackages (storage/fs, storage/s3,
// storage/memory), transformer variants under digest and ffmpeg, and the
// in-process transport adapter under bus. The core holds no persistent
// state; replies are fire-and-forget events correlated by request id, and
// retrying a whole request is the submitter's responsibility.
package simpletransform
