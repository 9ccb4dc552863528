package types

import "time"

// AnatomicalPart names a landmark produced by the pose estimator. Values use
// the estimator's camelCase naming so they round-trip through JSON unchanged.
type AnatomicalPart string

const (
	PartNose          AnatomicalPart = "nose"
	PartLeftEye       AnatomicalPart = "leftEye"
	PartRightEye      AnatomicalPart = "rightEye"
	PartLeftEar       AnatomicalPart = "leftEar"
	PartRightEar      AnatomicalPart = "rightEar"
	PartLeftShoulder  AnatomicalPart = "leftShoulder"
	PartRightShoulder AnatomicalPart = "rightShoulder"
	PartLeftElbow     AnatomicalPart = "leftElbow"
	PartRightElbow    AnatomicalPart = "rightElbow"
	PartLeftWrist     AnatomicalPart = "leftWrist"
	PartRightWrist    AnatomicalPart = "rightWrist"
	PartLeftHip       AnatomicalPart = "leftHip"
	PartRightHip      AnatomicalPart = "rightHip"
	PartLeftKnee      AnatomicalPart = "leftKnee"
	PartRightKnee     AnatomicalPart = "rightKnee"
	PartLeftAnkle     AnatomicalPart = "leftAnkle"
	PartRightAnkle    AnatomicalPart = "rightAnkle"
)

// Point is a 2D position. Keypoints carry pixel coordinates; the feature
// extractor works on unit-square coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Keypoint is one estimated landmark for a single frame.
type Keypoint struct {
	Part     AnatomicalPart `json:"part"`
	Position Point          `json:"position"`
	Score    float64        `json:"score"`
}

// Pose is the ordered set of keypoints the estimator found in one frame.
// A Pose holds at most one Keypoint per AnatomicalPart. An empty Pose is
// valid and means nothing was detected.
type Pose struct {
	Keypoints []Keypoint `json:"keypoints"`
	Score     float64    `json:"score,omitempty"`
}

// Empty reports whether the estimator returned no keypoints.
func (p Pose) Empty() bool {
	return len(p.Keypoints) == 0
}

// Get returns the keypoint for part, if present.
func (p Pose) Get(part AnatomicalPart) (Keypoint, bool) {
	for _, kp := range p.Keypoints {
		if kp.Part == part {
			return kp, true
		}
	}
	return Keypoint{}, false
}

// CountAbove returns how many keypoints have a score of at least min.
func (p Pose) CountAbove(min float64) int {
	n := 0
	for _, kp := range p.Keypoints {
		if kp.Score >= min {
			n++
		}
	}
	return n
}

// Frame is a single encoded video frame as delivered by a frame source.
type Frame struct {
	// Seq is the monotonic sequence number assigned by the source.
	Seq uint64
	// Timestamp is when the frame was captured.
	Timestamp time.Time
	// Width and Height are the pixel dimensions of the frame.
	Width  int
	Height int
	// Data holds the encoded image bytes.
	Data []byte
	// ContentType is the MIME type of Data (e.g. "image/jpeg").
	ContentType string
}
