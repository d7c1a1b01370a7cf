// Package chain provides read and write gateways to the escrow contract and
// the ERC20 tokens it accepts, built on go-ethereum bound contracts.
package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// escrowABIJSON is the subset of the escrow contract interface this service
// uses. Tuple component names must match the RawProject field names.
const escrowABIJSON = `[
  {"type":"function","name":"projectCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getProject","stateMutability":"view","inputs":[{"name":"projectId","type":"uint256"}],"outputs":[{"name":"","type":"tuple","components":[
    {"name":"creator","type":"address"},
    {"name":"tokenAddress","type":"address"},
    {"name":"title","type":"string"},
    {"name":"descriptionURI","type":"string"},
    {"name":"goal","type":"uint256"},
    {"name":"deadline","type":"uint256"},
    {"name":"totalRaised","type":"uint256"},
    {"name":"totalRefunded","type":"uint256"},
    {"name":"withdrawn","type":"bool"},
    {"name":"cancelled","type":"bool"},
    {"name":"pausedByCreator","type":"bool"}
  ]}]},
  {"type":"function","name":"getProjects","stateMutability":"view","inputs":[{"name":"offset","type":"uint256"},{"name":"limit","type":"uint256"}],"outputs":[{"name":"","type":"tuple[]","components":[
    {"name":"creator","type":"address"},
    {"name":"tokenAddress","type":"address"},
    {"name":"title","type":"string"},
    {"name":"descriptionURI","type":"string"},
    {"name":"goal","type":"uint256"},
    {"name":"deadline","type":"uint256"},
    {"name":"totalRaised","type":"uint256"},
    {"name":"totalRefunded","type":"uint256"},
    {"name":"withdrawn","type":"bool"},
    {"name":"cancelled","type":"bool"},
    {"name":"pausedByCreator","type":"bool"}
  ]}]},
  {"type":"function","name":"getContribution","stateMutability":"view","inputs":[{"name":"projectId","type":"uint256"},{"name":"backer","type":"address"}],"outputs":[{"name":"amount","type":"uint256"},{"name":"refunded","type":"uint256"}]},
  {"type":"function","name":"createProject","stateMutability":"nonpayable","inputs":[{"name":"tokenAddress","type":"address"},{"name":"title","type":"string"},{"name":"descriptionURI","type":"string"},{"name":"goal","type":"uint256"},{"name":"duration","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"fundProject","stateMutability":"nonpayable","inputs":[{"name":"projectId","type":"uint256"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"refund","stateMutability":"nonpayable","inputs":[{"name":"projectId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"withdrawFunds","stateMutability":"nonpayable","inputs":[{"name":"projectId","type":"uint256"}],"outputs":[]}
]`

// erc20ABIJSON covers the ERC20 calls needed for metadata, balance and
// allowance handling.
const erc20ABIJSON = `[
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

var (
	escrowABI abi.ABI
	erc20ABI  abi.ABI
)

func init() {
	var err error
	escrowABI, err = abi.JSON(strings.NewReader(escrowABIJSON))
	if err != nil {
		panic("chain: invalid escrow ABI: " + err.Error())
	}
	erc20ABI, err = abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic("chain: invalid erc20 ABI: " + err.Error())
	}
}
