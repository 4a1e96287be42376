package testutils

import (
	"fmt"
	"math/big"
	"math/rand"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cosmwasm-lightclient/relayer/relay-service/lightclient"
)

// ReferenceStep returns a step update that was relayed on the Osmosis
// testnet.
func ReferenceStep() lightclient.StepUpdate {
	return lightclient.StepUpdate{
		FinalizedSlot:       4359840,
		Participation:       416,
		FinalizedHeaderRoot: "70d0a7f53a459dd88eb37c6cfdfb8c48f120e504c96b182357498f2691aa5653",
		ExecutionStateRoot:  "69d746cb81cd1fb4c11f4dcc04b6114596859b518614da0dd3b4192ff66c3a58",
		Proof: lightclient.Proof{
			A: lightclient.G1Point{
				"11615329083473960992128771606806176302546966364412380447650480685095571936958",
				"2281247970071569462274353077438743272476535637671476850473256181863734012702",
			},
			B: lightclient.G2Point{
				{
					"18305192230769288908736007603632911621855044310287042254218011468623673723399",
					"5251973268907993188476337278706887604258187030264761912857355235415313364744",
				},
				{
					"6850472048099850156682893507512366982725072599067846678807675735813593979408",
					"11215731197748460247324302977723918666979026500987890455930385040107458565713",
				},
			},
			C: lightclient.G1Point{
				"12793492554536042198863380854903485491687707191489735849428107264231552201753",
				"4328029698850132503014972253449487359040744460425843328572797660470326494516",
			},
		},
	}
}

// ReferenceRotate returns a rotate update that was relayed on the Osmosis
// testnet.
func ReferenceRotate() lightclient.RotateUpdate {
	return lightclient.RotateUpdate{
		Step: lightclient.StepUpdate{
			FinalizedSlot:       4841568,
			Participation:       406,
			FinalizedHeaderRoot: "ef6ac7fd64dfe5311e994d2d1bef7532162bb83df0ffa93aed8b7a1d876c9670",
			ExecutionStateRoot:  "0d19c73db3d1b20946d47a372b3e376e1da4607451522ad166d8d840205a0977",
			Proof: lightclient.Proof{
				A: lightclient.G1Point{
					"17678200247500807915516442069459263088688298014440878779370203204485297243253",
					"668677161502286101563894714981729964194699570006131833735785056716286587846",
				},
				B: lightclient.G2Point{
					{
						"9073189333002641268699898880423427884530312520574836079650585601729939523257",
						"4073805207134898136028891237384563804393104225852773591359494267405532929823",
					},
					{
						"6012292475434631765688755681738413806573283060443036082585341787059807703445",
						"3988751551327405857482391952699873259320818097811951693746348585549859448238",
					},
				},
				C: lightclient.G1Point{
					"1293517260713858648315711015178474091429022666655280377869546884043721024877",
					"10971067119950847415454909217256035076207158562093894610502962586019231251061",
				},
			},
		},
		SyncCommitteeSSZ:      "ece3a90db275591ded5146c189400fded5d22c2172aec024efb9bbf97403c69f",
		SyncCommitteePoseidon: "7713204134344712740643862736510976272912240228517853413817897082105185485572",
		Proof: lightclient.Proof{
			A: lightclient.G1Point{
				"5815760768428739075475041501977714867101348194003275868836008635786051999559",
				"12178538775250372475190722621652880649580939797574824323064618635500969555648",
			},
			B: lightclient.G2Point{
				{
					"742273729738604373134116051946278924657216843994040206189563573392105915153",
					"11920648287489181765675191279352944615295161881956443662899340256326363630799",
				},
				{
					"21495024500447707741460968189511157808759208163037085057710725587254206405843",
					"3491785396664780208364954448336595088815216570168964120153286399627564098952",
				},
			},
			C: lightclient.G1Point{
				"6670165410898599100691713737541277970065783443873463768654322697125408086809",
				"14835034623172130750342550543897539948635510100558562354315317329752367166837",
			},
		},
	}
}

func RandomHash(rng *rand.Rand) (out common.Hash) {
	rng.Read(out[:])
	return out
}

func RandomAddress(rng *rand.Rand) (out common.Address) {
	rng.Read(out[:])
	return out
}

// RandomU256 returns a canonical field element below 2^254.
func RandomU256(rng *rand.Rand) lightclient.U256 {
	var buf [32]byte
	rng.Read(buf[:])
	buf[0] &= 0x3f
	return lightclient.U256(new(big.Int).SetBytes(buf[:]).String())
}

func RandomProof(rng *rand.Rand) lightclient.Proof {
	var p lightclient.Proof
	for i := 0; i < 2; i++ {
		p.A[i] = RandomU256(rng)
		p.C[i] = RandomU256(rng)
		for j := 0; j < 2; j++ {
			p.B[i][j] = RandomU256(rng)
		}
	}
	return p
}

// RandomStep returns a normalized step update with the given slot.
func RandomStep(rng *rand.Rand, slot uint64) lightclient.StepUpdate {
	return lightclient.StepUpdate{
		FinalizedSlot:       slot,
		Participation:       uint64(rng.Intn(512) + 1),
		FinalizedHeaderRoot: lightclient.Hash(fmt.Sprintf("%x", RandomHash(rng).Bytes())),
		ExecutionStateRoot:  lightclient.Hash(fmt.Sprintf("%x", RandomHash(rng).Bytes())),
		Proof:               RandomProof(rng),
	}
}

// RandomRotate returns a normalized rotate update with the given slot.
func RandomRotate(rng *rand.Rand, slot uint64) lightclient.RotateUpdate {
	return lightclient.RotateUpdate{
		Step:                  RandomStep(rng, slot),
		SyncCommitteeSSZ:      lightclient.Hash(fmt.Sprintf("%x", RandomHash(rng).Bytes())),
		SyncCommitteePoseidon: RandomU256(rng),
		Proof:                 RandomProof(rng),
	}
}
