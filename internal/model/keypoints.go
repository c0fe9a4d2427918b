// Package model defines the detector and pose-estimator interfaces and the
// keypoint types shared by the 2D and 3D stages.
package model

// NumJoints is the number of body joints in the COCO keypoint convention.
const NumJoints = 17

// Joint indices in COCO order.
const (
	JointNose = iota
	JointLeftEye
	JointRightEye
	JointLeftEar
	JointRightEar
	JointLeftShoulder
	JointRightShoulder
	JointLeftElbow
	JointRightElbow
	JointLeftWrist
	JointRightWrist
	JointLeftHip
	JointRightHip
	JointLeftKnee
	JointRightKnee
	JointLeftAnkle
	JointRightAnkle
)

// JointNames lists the COCO joint names in index order.
var JointNames = [NumJoints]string{
	"nose",
	"left_eye", "right_eye",
	"left_ear", "right_ear",
	"left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow",
	"left_wrist", "right_wrist",
	"left_hip", "right_hip",
	"left_knee", "right_knee",
	"left_ankle", "right_ankle",
}

// Skeleton lists joint index pairs connected when rendering a pose.
var Skeleton = [][2]int{
	{JointLeftAnkle, JointLeftKnee}, {JointLeftKnee, JointLeftHip},
	{JointRightAnkle, JointRightKnee}, {JointRightKnee, JointRightHip},
	{JointLeftHip, JointRightHip},
	{JointLeftShoulder, JointLeftHip}, {JointRightShoulder, JointRightHip},
	{JointLeftShoulder, JointRightShoulder},
	{JointLeftShoulder, JointLeftElbow}, {JointRightShoulder, JointRightElbow},
	{JointLeftElbow, JointLeftWrist}, {JointRightElbow, JointRightWrist},
	{JointLeftEye, JointRightEye},
	{JointNose, JointLeftEye}, {JointNose, JointRightEye},
	{JointLeftEye, JointLeftEar}, {JointRightEye, JointRightEar},
	{JointLeftEar, JointLeftShoulder}, {JointRightEar, JointRightShoulder},
}

// Keypoints holds one detected 2D pose: per joint (x, y, score) in pixel
// coordinates of the source image.
type Keypoints [NumJoints][3]float64

// Pose3D holds one triangulated pose: per joint (x, y, z, score) in world
// coordinates. Score is the mean of the contributing 2D scores.
type Pose3D [NumJoints][4]float64
