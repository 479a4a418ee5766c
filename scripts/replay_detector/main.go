// Command replay_detector speaks the detector worker protocol and answers
// every request with canned boxes, for bench runs without an inference
// runtime. The fixture maps a model file base name to the boxes it returns:
//
//	{"pylon_320.onnx": [{"x1": 100, "y1": 80, "x2": 140, "y2": 200, "cls": 0, "prob": 0.9}]}
//
// Unknown models return no boxes.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"roktrack/pkg/vision"
)

type request struct {
	ID    string `json:"id"`
	Image string `json:"image"`
	Model string `json:"model"`
	Size  int    `json:"size"`
}

type response struct {
	ID         string       `json:"id"`
	Detections []vision.Box `json:"detections"`
	Error      string       `json:"error,omitempty"`
}

func main() {
	fixture := map[string][]vision.Box{}
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
			os.Exit(1)
		}
		if err := json.Unmarshal(data, &fixture); err != nil {
			fmt.Fprintf(os.Stderr, "[ERROR] fixture: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Fprintf(os.Stderr, "[INFO] replaying %d models\n", len(fixture))

	in := bufio.NewScanner(os.Stdin)
	out := json.NewEncoder(os.Stdout)
	for in.Scan() {
		var req request
		resp := response{Detections: []vision.Box{}}
		if err := json.Unmarshal(in.Bytes(), &req); err != nil {
			resp.Error = err.Error()
		} else if boxes, ok := fixture[filepath.Base(req.Model)]; ok {
			resp.Detections = boxes
		}
		resp.ID = req.ID
		if err := out.Encode(resp); err != nil {
			fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
			os.Exit(1)
		}
	}
}
