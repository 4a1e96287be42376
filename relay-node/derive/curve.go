package derive

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"

	"github.com/cosmwasm-lightclient/relayer/relay-service/lightclient"
)

// CheckProofCurve verifies that the proof's points are valid BN254 points:
// every coordinate is a reduced base-field element and the G1 and G2 points
// lie on their curves. It does not verify the proof itself.
//
// G2 coordinates use the EVM precompile ordering, with the imaginary part of
// each Fp2 element first.
func CheckProofCurve(p lightclient.Proof) error {
	a, err := g1Affine("a", p.A)
	if err != nil {
		return err
	}
	if !a.IsOnCurve() {
		return fmt.Errorf("proof point a is not on the curve")
	}
	c, err := g1Affine("c", p.C)
	if err != nil {
		return err
	}
	if !c.IsOnCurve() {
		return fmt.Errorf("proof point c is not on the curve")
	}
	b, err := g2Affine("b", p.B)
	if err != nil {
		return err
	}
	if !b.IsOnCurve() {
		return fmt.Errorf("proof point b is not on the twist")
	}
	return nil
}

func fieldElement(name string, u lightclient.U256) (*big.Int, error) {
	v, err := u.Int()
	if err != nil {
		return nil, err
	}
	n := v.ToBig()
	if n.Cmp(fp.Modulus()) >= 0 {
		return nil, fmt.Errorf("coordinate %s is not a reduced field element", name)
	}
	return n, nil
}

func g1Affine(name string, pt lightclient.G1Point) (*bn254.G1Affine, error) {
	x, err := fieldElement(name+"[0]", pt[0])
	if err != nil {
		return nil, err
	}
	y, err := fieldElement(name+"[1]", pt[1])
	if err != nil {
		return nil, err
	}
	var out bn254.G1Affine
	out.X.SetBigInt(x)
	out.Y.SetBigInt(y)
	return &out, nil
}

func g2Affine(name string, pt lightclient.G2Point) (*bn254.G2Affine, error) {
	var coords [2][2]*big.Int
	for i := range pt {
		for j := range pt[i] {
			v, err := fieldElement(fmt.Sprintf("%s[%d][%d]", name, i, j), pt[i][j])
			if err != nil {
				return nil, err
			}
			coords[i][j] = v
		}
	}
	var out bn254.G2Affine
	out.X.A1.SetBigInt(coords[0][0])
	out.X.A0.SetBigInt(coords[0][1])
	out.Y.A1.SetBigInt(coords[1][0])
	out.Y.A0.SetBigInt(coords[1][1])
	return &out, nil
}
