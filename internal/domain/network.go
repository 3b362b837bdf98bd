package domain

// Network identifies a supported blockchain network.
type Network string

const (
	NetworkBase Network = "BASE"
	NetworkEth  Network = "ETH"
	NetworkTao  Network = "TAO"
)

// String returns the string representation of Network.
func (n Network) String() string {
	return string(n)
}

// IsValid checks if the network is a valid value.
func (n Network) IsValid() bool {
	return n == NetworkBase || n == NetworkEth || n == NetworkTao
}

// Networks lists all supported networks in a fixed order.
func Networks() []Network {
	return []Network{NetworkBase, NetworkEth, NetworkTao}
}
