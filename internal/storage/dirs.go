package storage

// Dirs bundles the three artifact namespaces: uploaded inputs, finished
// outputs and scratch space for in-flight work.
type Dirs struct {
	Uploads *Sandbox
	Outputs *Sandbox
	Temp    *Sandbox
}

// NewDirs creates (and if needed makes) the three namespace sandboxes.
func NewDirs(uploadPath, outputPath, tempPath string) (*Dirs, error) {
	uploads, err := NewSandbox(uploadPath)
	if err != nil {
		return nil, err
	}
	outputs, err := NewSandbox(outputPath)
	if err != nil {
		return nil, err
	}
	temp, err := NewSandbox(tempPath)
	if err != nil {
		return nil, err
	}
	return &Dirs{Uploads: uploads, Outputs: outputs, Temp: temp}, nil
}
