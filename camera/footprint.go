package camera

// Footprint returns the outline of the image back-projected onto the plane
// Z=z, in world coordinates.  Image corners whose rays never reach the plane
// are left out, so the result may have fewer than four points
func (v *View) Footprint(z float64) [][2]float64 {

	w, h := float64(v.size.X), float64(v.size.Y)
	corners := [4][2]float64{{0, 0}, {w, 0}, {w, h}, {0, h}}

	out := make([][2]float64, 0, len(corners))

	for _, c := range corners {

		d := v.ray(c[0], c[1])

		if d.Z == 0 {
			continue
		}

		s := (z - v.location.Z) / d.Z

		if s <= 0 {
			continue
		}

		p := v.location.Add(d.Mul(s))
		out = append(out, [2]float64{p.X, p.Y})
	}

	return out
}
