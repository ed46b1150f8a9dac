package quip

import (
	"os"
	"path/filepath"
)

// Artifact file names looked up inside the artifact directory. The first
// classifier file that exists wins.
var classifierFiles = []string{"classifier.onnx", "classifier.safetensors", "classifier.json"}

const vectorizerFile = "vectorizer.json"

type options struct {
	artifactDir    string
	vectorizerPath string
	classifierPath string
	onnxLibrary    string
}

// Option configures a Quip instance.
type Option func(*options)

// WithArtifactDir sets the directory containing the fitted artifacts.
// Expects vectorizer.json plus one of classifier.onnx,
// classifier.safetensors or classifier.json.
func WithArtifactDir(dir string) Option {
	return func(o *options) {
		o.artifactDir = dir
	}
}

// WithArtifactPaths sets explicit paths for the vectorizer and classifier.
func WithArtifactPaths(vectorizer, classifier string) Option {
	return func(o *options) {
		o.vectorizerPath = vectorizer
		o.classifierPath = classifier
	}
}

// WithONNXLibrary sets the onnxruntime shared library used for .onnx
// classifiers. Default: libonnxruntime.so next to the model.
func WithONNXLibrary(path string) Option {
	return func(o *options) {
		o.onnxLibrary = path
	}
}

func defaultOptions() options {
	return options{artifactDir: "models"}
}

// resolvePaths determines the vectorizer and classifier paths. Explicit
// paths take precedence over artifactDir.
func resolvePaths(o options) (vectorizer, classifier string) {
	if o.vectorizerPath != "" && o.classifierPath != "" {
		return o.vectorizerPath, o.classifierPath
	}
	dir := o.artifactDir
	if dir == "" {
		dir = "models"
	}
	vectorizer = filepath.Join(dir, vectorizerFile)
	for _, name := range classifierFiles {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return vectorizer, p
		}
	}
	return vectorizer, filepath.Join(dir, classifierFiles[len(classifierFiles)-1])
}
