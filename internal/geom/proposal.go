package geom

import "math"

const (
	// DefaultProposalRadius is the cylinder radius in world length units.
	DefaultProposalRadius = 0.4
	// DefaultHumanHeight is the assumed standing height of the subject.
	DefaultHumanHeight = 1.5
	// proposalSides is the number of vertices per cylinder ring.
	proposalSides = 32
)

// RegionProposal builds the vertex set of a solid prior volume for the human:
// a cylinder of the given height and radius whose axis follows the ground
// normal. The cylinder center sits half the human height below the anchor
// along the normal, so the volume spans roughly ground level to head height
// under the anchor (the egocentric device midpoint).
//
// The vertex set is deterministic: two rings of proposalSides vertices plus
// the two cap centers, bottom ring first. The caller projects these into each
// exocentric image and validates the resulting box.
//
// The normal must be unit length and finite; FitPlane guarantees both.
func RegionProposal(anchor, unitNormal Vec3, humanHeight, radius float64) []Vec3 {
	center := anchor.Sub(unitNormal.Scale(humanHeight * 0.5))

	// Orthonormal basis for the ring plane.
	ref := Vec3{1, 0, 0}
	if math.Abs(unitNormal.X) > 0.9 {
		ref = Vec3{0, 1, 0}
	}
	u := unitNormal.Cross(ref).Normalize()
	w := unitNormal.Cross(u)

	half := unitNormal.Scale(humanHeight * 0.5)
	bottom := center.Sub(half)
	top := center.Add(half)

	verts := make([]Vec3, 0, 2*proposalSides+2)
	for _, cap := range []Vec3{bottom, top} {
		for k := 0; k < proposalSides; k++ {
			theta := 2 * math.Pi * float64(k) / proposalSides
			rim := u.Scale(radius * math.Cos(theta)).Add(w.Scale(radius * math.Sin(theta)))
			verts = append(verts, cap.Add(rim))
		}
	}
	verts = append(verts, bottom, top)
	return verts
}
